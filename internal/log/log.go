package log

import "go.uber.org/zap"

// New builds the process logger. Development output for env "dev",
// production JSON otherwise.
func New(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
