package handler

type ContextKey string

var (
	RoleCtxKey  ContextKey = "role"
	SubCtxKey   ContextKey = "sub"
	MyInfoCtx   ContextKey = "myInfo"
	ResourceCtx ContextKey = "resource"
	ShiftCtx    ContextKey = "shift"
	ScenarioCtx ContextKey = "scenario"
)
