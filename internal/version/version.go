// Package version отдаёт сведения о сборке, подставленные через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/pos/internal/version.version=v1.2.0"
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает коммит сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// String — строка для логов при старте.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}

// UserAgent строит User-Agent для исходящих запросов утилит кассы.
func UserAgent(component string) string {
	return fmt.Sprintf("pos-%s/%s", component, version)
}
