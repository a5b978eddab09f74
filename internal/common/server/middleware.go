package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/FleetDVCR/FleetDVCR/internal/common/apperrors"
	"github.com/FleetDVCR/FleetDVCR/internal/common/auth"
	"github.com/FleetDVCR/FleetDVCR/internal/common/config"
	"github.com/FleetDVCR/FleetDVCR/internal/common/logger"
	"github.com/FleetDVCR/FleetDVCR/internal/common/middleware"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

const authContextKey = "dvcr-auth-info"

// AuthInfo 从 JWT 中解析出的最小用户信息（放入请求上下文，供业务侧使用）。
type AuthInfo struct {
	Subject string   // 用户 ID
	Roles   []string // 角色列表（RBAC）
}

// AuthFromContext 从请求上下文中取出鉴权信息。
func AuthFromContext(c *gin.Context) (AuthInfo, bool) {
	v, ok := c.Get(authContextKey)
	if !ok {
		return AuthInfo{}, false
	}
	ai, ok := v.(AuthInfo)
	return ai, ok
}

// ResolvePrincipal 把请求上下文中的 token subject 解析为当前用户。
// 未携带有效凭证或账号已删除都视为未认证。
func ResolvePrincipal(c *gin.Context, r guard.Resolver) (guard.Principal, error) {
	info, ok := AuthFromContext(c)
	if !ok || strings.TrimSpace(info.Subject) == "" {
		return guard.Principal{}, apperrors.Unauthenticated("not authenticated")
	}
	return r.ResolvePrincipal(c.Request.Context(), info.Subject)
}

// AbortWithError 按错误分类返回 HTTP 响应并终止后续 handler。
func AbortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"detail": err.Error()})
}

// RecoveryMiddleware 防止 panic 直接把进程打崩，并记录栈信息。
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if log != nil {
					log.Errorf("panic in http route=%s err=%v stack=%s", c.FullPath(), r, string(debug.Stack()))
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
			}
		}()
		c.Next()
	}
}

// AccessLogMiddleware 记录每个 HTTP 请求的耗时/状态码。
func AccessLogMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		cost := time.Since(start)

		if log != nil {
			fields := map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.FullPath(),
				"status": c.Writer.Status(),
				"cost":   cost.String(),
			}
			if c.Writer.Status() >= http.StatusBadRequest {
				log.WithFields(fields).Warn("http request failed")
			} else {
				log.WithFields(fields).Info("http request ok")
			}
		}
	}
}

// TracingMiddleware 基于 OpenTracing 的最小 server middleware：
// - 从 HTTP header 里提取 span context（traceparent / uber-trace-id 等，取决于上游注入格式）
// - 创建 server span，并注入到 request context，方便业务侧 opentracing.StartSpanFromContext 使用
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tracer := opentracing.GlobalTracer()

		var parent opentracing.SpanContext
		if sc, err := tracer.Extract(opentracing.HTTPHeaders,
			opentracing.HTTPHeadersCarrier(c.Request.Header)); err == nil {
			parent = sc
		}

		operation := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())

		var span opentracing.Span
		if parent != nil {
			span = tracer.StartSpan(operation, ext.RPCServerOption(parent))
		} else {
			span = tracer.StartSpan(operation)
		}
		defer span.Finish()

		ext.SpanKindRPCServer.Set(span)
		ext.Component.Set(span, "http")
		ext.HTTPMethod.Set(span, c.Request.Method)
		ext.HTTPUrl.Set(span, c.Request.URL.Path)
		if serviceName != "" {
			span.SetTag("service", serviceName)
		}

		c.Request = c.Request.WithContext(opentracing.ContextWithSpan(c.Request.Context(), span))
		c.Next()

		ext.HTTPStatusCode.Set(span, uint16(c.Writer.Status()))
	}
}

// RateLimitMiddleware 服务级限流（令牌桶）。
func RateLimitMiddleware(limiter middleware.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow(c.Request.Context()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "too many requests"})
			return
		}
		c.Next()
	}
}

// JWTAuthMiddleware 用于 JWT 鉴权：
// - 从 `Authorization: Bearer <token>` 读取 token
// - 校验签名与标准字段，解析 roles
// - 将解析结果写入请求上下文
func JWTAuthMiddleware(cfg config.AuthConfig, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}
		if isPublicPath(cfg.PublicPaths, c.Request.Method, c.FullPath()) {
			c.Next()
			return
		}
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			if log != nil {
				log.Warn("auth enabled but jwt_secret is empty")
			}
			AbortWithError(c, apperrors.Unauthenticated("auth not configured"))
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			AbortWithError(c, apperrors.Unauthenticated("missing authorization"))
			return
		}
		tokenStr := raw
		if strings.HasPrefix(strings.ToLower(tokenStr), "bearer ") {
			tokenStr = strings.TrimSpace(tokenStr[len("bearer "):])
		}
		if tokenStr == "" {
			AbortWithError(c, apperrors.Unauthenticated("invalid authorization"))
			return
		}

		claims, err := auth.ParseAccessToken(cfg, tokenStr)
		if err != nil {
			AbortWithError(c, apperrors.Unauthenticated("invalid token"))
			return
		}

		c.Set(authContextKey, AuthInfo{
			Subject: claims.Subject,
			Roles:   claims.Roles,
		})
		c.Next()
	}
}

// RBACMiddleware 基于 route->roles 的附加限制：
// - 若 cfg.RBAC["METHOD /path"] 存在且非空，则要求 token roles 与之有交集
// - 未配置的路由默认放行（即“只鉴权，不限权”，操作级门禁由领域层 guard 执行）
func RBACMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || len(cfg.RBAC) == 0 {
			c.Next()
			return
		}
		if isPublicPath(cfg.PublicPaths, c.Request.Method, c.FullPath()) {
			c.Next()
			return
		}

		required := cfg.RBAC[routeKey(c.Request.Method, c.FullPath())]
		if len(required) == 0 {
			c.Next()
			return
		}

		ai, ok := AuthFromContext(c)
		if !ok {
			AbortWithError(c, apperrors.Unauthenticated("missing auth context"))
			return
		}
		if !hasAnyRole(ai.Roles, required) {
			AbortWithError(c, apperrors.Forbidden("permission denied"))
			return
		}
		c.Next()
	}
}

func routeKey(method, path string) string {
	return method + " " + path
}

func isPublicPath(public []string, method, path string) bool {
	if path == "" || len(public) == 0 {
		return false
	}
	key := routeKey(method, path)
	for _, p := range public {
		if strings.TrimSpace(p) == key {
			return true
		}
	}
	return false
}

func hasAnyRole(got, required []string) bool {
	if len(got) == 0 || len(required) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(got))
	for _, r := range got {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	for _, r := range required {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
