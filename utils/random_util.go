package utils

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GetUUID 生成会话id，同时作为会话工作目录的名称
func GetUUID() string {
	u1, err := uuid.NewUUID()
	if err != nil {
		logrus.Warnf("[GetUUID] time based uuid fail, err = %v", err)
		return uuid.NewString()
	}
	return u1.String()
}
