// Package enroll provides the registration and identity core for an
// educational-club platform: course seat accounting, applicant intake,
// student accounts with OTP verification, session tokens, and an
// append-only activity log.
//
// Registration:
//   - Courses carry an available seat counter that is only ever moved by a
//     conditional UPDATE inside the registration transaction, so a seat can
//     never be handed out twice under concurrency.
//   - Applicants are guarded per course by (course, email) and
//     (course, phone) unique indexes; the Registrar maps violations to a
//     stable ALREADY_REGISTERED error.
//
// Student lifecycle:
//   - Students carry a StudentStatus that is persisted via Bun. Statuses
//     cover unverified, pending, active, and suspended flows.
//   - StudentStateMachine centralizes the transition graph, timestamp
//     handling, and persistence. Invoke Transition with ActorRef metadata
//     whenever an admin moves an account.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Registrar,
//     IdentityService, and the state machine. Sinks run best-effort (errors
//     are logged) so audit storage can never block the primary operation.
package enroll
