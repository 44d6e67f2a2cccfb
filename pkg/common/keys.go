package common

import "fmt"

var (
	// Knowledge-base status cache keys
	kbStatusPrefix string = "picker:kbstatus"
	kbStatus       string = "picker:kbstatus:%s" // folderPath
)

var Keys = &redisKeys{}

type redisKeys struct{}

// Knowledge-base status keys
func (rk *redisKeys) KBStatusPrefix() string {
	return kbStatusPrefix
}

func (rk *redisKeys) KBStatus(folderPath string) string {
	return fmt.Sprintf(kbStatus, folderPath)
}
