package api

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// MethodScope 决定方法的来源校验规则
type MethodScope int

const (
	// ScopeKeyring keyring_* 方法，受 AllowedOrigins 约束
	ScopeKeyring MethodScope = iota
	// ScopeInternal 智能账户内部方法，受 InternalOrigins 约束
	ScopeInternal
)

func (s MethodScope) String() string {
	if s == ScopeInternal {
		return "internal"
	}
	return "keyring"
}

// MethodHandler 处理一次 JSON-RPC 调用；返回值直接作为 result 序列化
type MethodHandler func(c echo.Context, method string, params json.RawMessage) (interface{}, error)

// Method 已注册的方法
type Method struct {
	Name    string
	Scope   MethodScope
	Prefix  bool
	Handler MethodHandler
}

// MethodRegistry JSON-RPC 方法表，按名字精确匹配，其次按最长前缀匹配
type MethodRegistry struct {
	exact    map[string]*Method
	prefixes []*Method
}

// NewMethodRegistry 创建空方法表
func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{exact: make(map[string]*Method)}
}

// Register 注册精确匹配的方法
func (r *MethodRegistry) Register(name string, scope MethodScope, h MethodHandler) *Method {
	m := &Method{Name: name, Scope: scope, Handler: h}
	r.exact[name] = m
	return m
}

// RegisterPrefix 注册按前缀转发的方法族（如 eth_）
func (r *MethodRegistry) RegisterPrefix(prefix string, scope MethodScope, h MethodHandler) *Method {
	m := &Method{Name: prefix, Scope: scope, Prefix: true, Handler: h}
	r.prefixes = append(r.prefixes, m)
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].Name) > len(r.prefixes[j].Name)
	})
	return m
}

// Lookup 查找方法
func (r *MethodRegistry) Lookup(name string) (*Method, bool) {
	if m, ok := r.exact[name]; ok {
		return m, true
	}
	for _, m := range r.prefixes {
		if strings.HasPrefix(name, m.Name) {
			return m, true
		}
	}
	return nil, false
}

// Names 已注册的精确方法名（排序）
func (r *MethodRegistry) Names() []string {
	names := make([]string, 0, len(r.exact))
	for name := range r.exact {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OriginAllowed 判断来源能否调用该作用域的方法。
// keyring 方法：AllowedOrigins 为空或包含来源（或 "*"）即放行。
// 内部方法：InternalOrigins 为空时只放行不带 Origin 的本地调用。
func (s *Server) OriginAllowed(scope MethodScope, origin string) bool {
	switch scope {
	case ScopeInternal:
		if len(s.Config.Echo.InternalOrigins) == 0 {
			return origin == ""
		}
		return containsOrigin(s.Config.Echo.InternalOrigins, origin)
	default:
		if len(s.Config.Echo.AllowedOrigins) == 0 {
			return true
		}
		return containsOrigin(s.Config.Echo.AllowedOrigins, origin)
	}
}

func containsOrigin(list []string, origin string) bool {
	for _, o := range list {
		if o == "*" || strings.EqualFold(strings.TrimSuffix(o, "/"), strings.TrimSuffix(origin, "/")) {
			return true
		}
	}
	return false
}

// HeaderChainID 转发到 bundler 的方法按该请求头选择链，缺省为默认链
const HeaderChainID = "X-Chain-Id"
