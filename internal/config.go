package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	HTTPPort int    `env:"HTTP_PORT,default=3001"`
	GRPCPort int    `env:"GRPC_PORT,default=50051"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`

	ConnectionBufferSize   int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	OutboundOverflowPolicy string        `env:"OUTBOUND_OVERFLOW_POLICY,default=disconnect"`
	PingPeriod             time.Duration `env:"PING_PERIOD,default=30s"`
	MaxContentLength       int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	EnforceSenderIdentity  bool          `env:"ENFORCE_SENDER_IDENTITY,default=false"`
	CensoredWords          string        `env:"CENSORED_WORDS"`
	CensoredWordsDir       string        `env:"CENSORED_WORDS_DIR"`
	CharReplacement        string        `env:"CHARACTER_REPLACEMENT,default=*"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=1h"`
	GRPCRequireToken  bool          `env:"GRPC_REQUIRE_TOKEN,default=false"`
	AllowedOrigins    string        `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=1m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// SplitList parses a comma separated variable, ignoring blanks.
func SplitList(str string) []string {
	return lo.Compact(lo.Map(strings.Split(str, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}
