package reqkit

import "context"

// GetJSON performs a GET and returns the envelope data decoded as T.
func GetJSON[T any](ctx context.Context, c *Client, path string, params Params, opts ...RequestOption) (T, error) {
	var out T
	_, err := c.Get(ctx, path, params, &out, opts...)
	return out, err
}

// PostJSON performs a POST with body and returns the envelope data decoded as T.
func PostJSON[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	var out T
	_, err := c.Post(ctx, path, body, &out, opts...)
	return out, err
}

// PutJSON performs a PUT with body and returns the envelope data decoded as T.
func PutJSON[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	var out T
	_, err := c.Put(ctx, path, body, &out, opts...)
	return out, err
}
