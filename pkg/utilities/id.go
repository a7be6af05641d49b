package utilities

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewUUID returns a random (v4) UUID string for externally visible ids.
func NewUUID() string {
	return uuid.NewString()
}

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewInviteCode returns an 8 character upper-case code taken from the random
// payload of a fresh KSUID.
func NewInviteCode() string {
	s := ksuid.New().String()
	return strings.ToUpper(s[len(s)-8:])
}

var snowflakeNode = sync.OnceValue(func() *snowflake.Node {
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = n
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil
	}
	return node
})

// NewSnowflakeID generates a snowflake ID string using a node ID from
// the environment variable SNOWFLAKE_NODE (default 1). If the node cannot be
// initialized it falls back to a KSUID string.
func NewSnowflakeID() string {
	node := snowflakeNode()
	if node == nil {
		return NewKSUID()
	}
	return node.Generate().String()
}
