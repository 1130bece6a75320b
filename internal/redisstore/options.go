package redisstore

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// DefaultPort is used when an endpoint names a host without a port.
const DefaultPort = 6379

// Endpoint identifies one Redis database.
type Endpoint struct {
	// URL, when set, is a redis[s]:// or unix:// URI and wins over the
	// other address fields. DB still overrides the URI database when
	// non-zero.
	URL      string
	Host     string
	Port     int
	DB       int
	Username string
	Password string
	// Name is reported to the server with CLIENT SETNAME.
	Name string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// IsURI reports whether target is a redis[s]:// or unix:// URI rather than a host.
func IsURI(target string) bool {
	return strings.HasPrefix(target, "redis://") ||
		strings.HasPrefix(target, "rediss://") ||
		strings.HasPrefix(target, "unix://")
}

// Options turns an endpoint into go-redis client options.
func (e Endpoint) Options() (*redis.Options, error) {
	target := e.URL
	if target == "" && IsURI(e.Host) {
		target = e.Host
	}

	var opts *redis.Options
	if target != "" {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, errors.Wrapf(err, "parse redis uri %q", target)
		}
		opts = parsed
		if e.DB != 0 {
			opts.DB = e.DB
		}
	} else {
		if e.Host == "" {
			return nil, errors.New("redis endpoint has no host")
		}
		port := e.Port
		if port == 0 {
			port = DefaultPort
		}
		opts = &redis.Options{
			Addr: net.JoinHostPort(e.Host, strconv.Itoa(port)),
			DB:   e.DB,
		}
	}

	if e.Username != "" {
		opts.Username = e.Username
	}
	if e.Password != "" {
		opts.Password = e.Password
	}
	if e.DialTimeout > 0 {
		opts.DialTimeout = e.DialTimeout
	}
	if e.ReadTimeout > 0 {
		opts.ReadTimeout = e.ReadTimeout
	}
	if e.WriteTimeout > 0 {
		opts.WriteTimeout = e.WriteTimeout
	}
	if e.PoolSize > 0 {
		opts.PoolSize = e.PoolSize
	}
	if e.Name != "" {
		name := e.Name
		opts.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
			return cn.ClientSetName(ctx, name).Err()
		}
	}
	return opts, nil
}

// String is the endpoint address without credentials, for logs.
func (e Endpoint) String() string {
	if opts, err := e.Options(); err == nil {
		network := opts.Network
		if network == "" {
			network = "tcp"
		}
		return network + "://" + opts.Addr + "/" + strconv.Itoa(opts.DB)
	}
	return e.Host
}
