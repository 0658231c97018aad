// Package redis connects to Redis with go-redis v9.
//
// Connect retries until the server answers a PING; Healthcheck adapts a client
// to the HTTP health endpoint. The settings store keeps per-user notification
// preferences here.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
