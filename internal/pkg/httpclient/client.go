// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Resolver 把服务名解析为实例地址，*nacos.Client 实现了它。
type Resolver interface {
	DiscoverServiceInstance(serviceName string) (string, int, error)
}

// StatusError 是下游返回非 2xx 时的错误。
type StatusError struct {
	URL     string
	Status  int
	Message string // 响应体中的 error 字段，可能为空
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("service %s returned status %d: %s", e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("service %s returned status %d", e.URL, e.Status)
}

// Client 是一个可追踪的 HTTP 客户端，超时完全由调用方的 context 控制。
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	resolver   Resolver
}

// NewClient resolver 可以为 nil，此时只能调用完整 URL。
func NewClient(tracer trace.Tracer, resolver Resolver) *Client {
	return &Client{
		Tracer: tracer,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
		resolver: resolver,
	}
}

// CallService 先通过 resolver 找到 serviceName 的实例，再以 JSON POST 到 path。
func (c *Client) CallService(ctx context.Context, serviceName, path string, body any) error {
	if c.resolver == nil {
		return errors.Errorf("no resolver configured for service %s", serviceName)
	}
	host, port, err := c.resolver.DiscoverServiceInstance(serviceName)
	if err != nil {
		return err
	}
	return c.PostJSON(ctx, fmt.Sprintf("http://%s:%d%s", host, port, path), body)
}

// PostJSON 把 body 编码为 JSON 发出，并注入追踪上下文。
func (c *Client) PostJSON(ctx context.Context, serviceURL string, body any) error {
	return c.DoJSON(ctx, http.MethodPost, serviceURL, nil, body, nil)
}

// DoJSON 发送一次 JSON 请求。body 为 nil 时不带请求体，out 非 nil 时解码 2xx 响应。
func (c *Client) DoJSON(ctx context.Context, method, serviceURL string, header http.Header, body, out any) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return errors.Wrapf(err, "parse %s", serviceURL)
	}
	ctx, span := c.Tracer.Start(ctx, "call-"+strings.Split(parsedURL.Host, ":")[0], trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, parsedURL.String(), reader)
	if err != nil {
		span.RecordError(err)
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	span.SetAttributes(
		attribute.String("http.url", parsedURL.String()),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{URL: parsedURL.String(), Status: resp.StatusCode}
		var msg struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&msg) == nil {
			statusErr.Message = msg.Error
		}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "decode response from %s", parsedURL.String())
		}
	}
	return nil
}
