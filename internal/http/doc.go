// Package http provides HTTP handlers and middleware for the maintenance API.
//
// The router exposes the following endpoints:
//   - POST /login: issues a session token. Body: {"email","password"}. The token
//     is returned in the body and surfaced via the `X-Session-Token` header and
//     a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session and clears the cookie.
//   - POST /timer/start, /timer/pause, /timer/resume, /timer/stop, /timer/switch
//     and GET /timer/active: timer operations for the authenticated actor,
//     exchanging the `timeEntryDTO` payload defined in timer_handler.go. Timer
//     precondition failures answer 409 with the id of the work order already
//     being timed.
//   - GET /work-orders, POST /work-orders, GET /work-orders/{id},
//     PUT /work-orders/{id}, PATCH /work-orders/{id}, DELETE /work-orders/{id}
//     and POST /work-orders/{id}/submit|approve|reject|start: work order CRUD
//     and lifecycle endpoints exchanging the `workOrderDTO` payload defined in
//     workorder_handler.go. PATCH with {"status":"completed"} runs the
//     force-stop-then-complete orchestration; transitions missing from the
//     lifecycle table answer 409.
//   - GET /users, POST /users, GET /users/{id}, PUT /users/{id},
//     DELETE /users/{id}: account management endpoints exchanging the `userDTO`
//     payload defined in user_handler.go.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
