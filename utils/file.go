package utils

import (
	"os"
)

func FileIsExisted(path string) bool {
	_, err := os.Stat(path)
	return err == nil || os.IsExist(err)
}
