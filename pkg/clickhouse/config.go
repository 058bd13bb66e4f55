package clickhouse

import "time"

type ClientOption func(*ClientConfig)

// ClientConfig describes one ClickHouse endpoint and its pool.
type ClientConfig struct {
	Addr     string // host:port
	Database string
	User     string
	Password string
	UseHTTP  bool

	Pool struct {
		MaxOpen     int
		MaxIdle     int
		MaxLifetime time.Duration
	}

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	MaxExecTime  time.Duration
	AsyncInsert  bool
	WaitForAsync bool
}

func defaultClientConfig() *ClientConfig {
	c := &ClientConfig{
		Database:    "default",
		User:        "default",
		DialTimeout: 5 * time.Second,
		ReadTimeout: 10 * time.Second,
	}
	c.Pool.MaxOpen = 10
	c.Pool.MaxIdle = 5
	c.Pool.MaxLifetime = 5 * time.Minute
	return c
}

func WithAddr(addr string) ClientOption {
	return func(c *ClientConfig) { c.Addr = addr }
}

// WithAuth sets the database and the credentials used for it.
func WithAuth(database, user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.Database, c.User, c.Password = database, user, password
	}
}

func WithPool(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) {
		c.Pool.MaxOpen, c.Pool.MaxIdle = maxOpen, maxIdle
	}
}

func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.DialTimeout, c.ReadTimeout = dial, read
	}
}

func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = useHTTP }
}

// WithAsyncInsert lets the server buffer candle inserts.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.AsyncInsert, c.WaitForAsync = enabled, wait
	}
}

func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}
