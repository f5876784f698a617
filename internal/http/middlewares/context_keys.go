package middlewares

type ctxKey string

const (
	CtxUserID ctxKey = "session.userID"
	CtxEmail  ctxKey = "session.email"
)
