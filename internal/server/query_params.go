package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseSnowflakeParam(c *gin.Context, name string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || parsed == 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+strings.ReplaceAll(name, "_", " "))
	}
	return parsed, nil
}
