package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken 表示没有可用凭证，需要重新登录。
var ErrNoToken = errors.New("no access token")

// Claims 与服务端签发的 access token 载荷一致。
type Claims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

// ParseClaims 只解析不验签：客户端没有密钥，签名由服务端在握手时校验。
func ParseClaims(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrNoToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Credentials 保存当前会话的 access token。连接因鉴权失败或任何原因关闭时调用 Clear，
// 之后 HasAuth 返回 false，外层据此回到登录流程。
type Credentials struct {
	mu    sync.RWMutex
	token string
}

func NewCredentials(token string) *Credentials {
	return &Credentials{token: token}
}

func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Credentials) HasAuth() bool {
	return c.Token() != ""
}

func (c *Credentials) Clear() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Usable 判断 token 在 now 时刻是否值得拿去握手。非 JWT 格式的不透明 token 交给服务端判断。
func (c *Credentials) Usable(now time.Time) error {
	tok := c.Token()
	if tok == "" {
		return ErrNoToken
	}
	claims, err := ParseClaims(tok)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil
		}
		return err
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return jwt.ErrTokenExpired
	}
	return nil
}
