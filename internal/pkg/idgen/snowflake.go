package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Nodes 1 and 2 are reserved for the server and the CLI; anything else
// writing to the same database should initialize with its own node.
const defaultNode = 1

var (
	node *snowflake.Node
	once sync.Once
)

// Initialize sets up the Snowflake generator with a node ID. Only the
// first call takes effect.
func Initialize(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// GenerateID returns a new Snowflake ID as a decimal string, suitable
// for primary-key columns. Falls back to the default node when
// Initialize was never called (tests, ad-hoc tools).
func GenerateID() string {
	if node == nil {
		_ = Initialize(defaultNode)
	}
	return node.Generate().String()
}
