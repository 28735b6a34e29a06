// Package identity 携带身份提供方断言的 (user_id, role)。
// 本服务不校验凭证，网关已完成认证，这里信任请求头中的断言。
package identity

import (
	"context"
	"net/http"
	"strings"
)

type Role string

const (
	RoleUser          Role = "user"
	RoleAdmin         Role = "admin"
	RoleAffiliate     Role = "affiliate"
	RoleInstagramUser Role = "instagram_user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleAffiliate, RoleInstagramUser:
		return true
	}
	return false
}

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Actor 是发起操作的人。
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin && a.UserID != ""
}

func (a Actor) Anonymous() bool {
	return a.UserID == ""
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && !a.Anonymous()
}

// Middleware 从请求头读取身份断言。缺失角色时按普通用户处理。
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := Actor{
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role:   Role(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
		}
		if !actor.Role.Valid() {
			actor.Role = RoleUser
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}
