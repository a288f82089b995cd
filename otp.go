package enroll

import (
	"crypto/rand"
	"math/big"
	"time"
)

// OTPLength is the number of digits in a verification code
const OTPLength = 6

// DefaultOTPTTL is how long a verification code stays valid
var DefaultOTPTTL = 15 * time.Minute

var otpMax = big.NewInt(10)

// GenerateOTP returns a random numeric single-use code
func GenerateOTP() (string, error) {
	buf := make([]byte, OTPLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, otpMax)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
