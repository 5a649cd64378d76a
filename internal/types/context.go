package types

type contextKey string

// SubjectKey holds the authenticated username in a request context.
const SubjectKey contextKey = "subject"
