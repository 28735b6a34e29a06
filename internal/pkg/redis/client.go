// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// Client 包装 UniversalClient，并按名字管理预加载的 Lua 脚本。
type Client struct {
	client  goredis.UniversalClient
	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient addrs 格式为 "host1:port1,host2:port2"，多个地址时使用集群模式。
func NewClient(addrs, password string) (*Client, error) {
	uc := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    strings.Split(addrs, ","),
		Password: password,
	})
	if err := uc.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis %s: %w", addrs, err)
	}
	return Wrap(uc), nil
}

func Wrap(uc goredis.UniversalClient) *Client {
	return &Client{client: uc, scripts: make(map[string]*goredis.Script)}
}

// LoadScriptFromContent 把脚本加载到服务端缓存，之后可以按名字执行。
func (c *Client) LoadScriptFromContent(name, content string) error {
	script := goredis.NewScript(content)
	if err := script.Load(context.Background(), c.client).Err(); err != nil {
		return fmt.Errorf("failed to load script %s: %w", name, err)
	}
	c.mu.Lock()
	c.scripts[name] = script
	c.mu.Unlock()
	return nil
}

// RunScript 优先 EVALSHA，脚本缓存丢失时自动回退为 EVAL。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script %s is not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
