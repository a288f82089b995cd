package enroll_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/educlub/enroll"
)

// MockStudents stubs the student repository for state machine tests.
// The embedded interface covers the methods a test never touches;
// calling one of those panics, which is the failure we want.
type MockStudents struct {
	mock.Mock
	enroll.Students
}

func (m *MockStudents) UpdateStatus(ctx context.Context, id uuid.UUID, status enroll.StudentStatus, opts ...enroll.StatusUpdateOption) (*enroll.Student, error) {
	args := m.Called(ctx, id, status, opts)
	var student *enroll.Student
	if v := args.Get(0); v != nil {
		student = v.(*enroll.Student)
	}
	return student, args.Error(1)
}

func (m *MockStudents) GetByEmail(ctx context.Context, email string) (*enroll.Student, error) {
	args := m.Called(ctx, email)
	var student *enroll.Student
	if v := args.Get(0); v != nil {
		student = v.(*enroll.Student)
	}
	return student, args.Error(1)
}
