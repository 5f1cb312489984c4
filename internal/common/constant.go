package common

// AuthorizationHeaderName carries the bearer access token on REST calls.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token inside the Authorization header.
const BearerPrefix = "Bearer "

// TimeLayout is used for every timestamp persisted locally or sent over the wire.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
