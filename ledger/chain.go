package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Block records one confirmed action in the audit chain.
type Block struct {
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
	PrevHash  string `json:"prev_hash"`
	Hash      string `json:"hash"`
	Action    string `json:"action"`
	GameID    string `json:"game_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	TxID      string `json:"tx_id"`
}

// Chain is an append-only, hash-chained log of confirmed ledger actions.
type Chain struct {
	mu     sync.RWMutex
	blocks []Block
}

// NewChain creates a chain with an initialized genesis block: index 0,
// previous hash "0" and the genesis action.
func NewChain() *Chain {
	c := &Chain{}
	genesis := Block{
		Index:     0,
		Timestamp: time.Now().Unix(),
		PrevHash:  "0",
		Action:    "genesis",
	}
	genesis.Hash = calculateHash(genesis)
	c.blocks = append(c.blocks, genesis)
	return c
}

// append adds a confirmed action to the chain.
func (c *Chain) append(action, gameID, actor, txID string, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	latest := c.blocks[len(c.blocks)-1]
	b := Block{
		Index:     latest.Index + 1,
		Timestamp: ts.Unix(),
		PrevHash:  latest.Hash,
		Action:    action,
		GameID:    gameID,
		Actor:     actor,
		TxID:      txID,
	}
	b.Hash = calculateHash(b)
	c.blocks = append(c.blocks, b)
}

// Latest returns the most recently appended block.
func (c *Chain) Latest() Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1]
}

// Len returns the number of blocks including genesis.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Verify validates the integrity of the entire chain: the genesis block,
// index continuity, previous-hash linkage and each block's own hash.
func (c *Chain) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.blocks) == 0 {
		return fmt.Errorf("empty chain")
	}
	if c.blocks[0].PrevHash != "0" {
		return fmt.Errorf("invalid genesis block")
	}
	for i := 1; i < len(c.blocks); i++ {
		current, previous := c.blocks[i], c.blocks[i-1]
		if current.Index != previous.Index+1 {
			return fmt.Errorf("block %d: invalid index", i)
		}
		if current.PrevHash != previous.Hash {
			return fmt.Errorf("block %d: invalid prev hash", i)
		}
		if current.Hash != calculateHash(current) {
			return fmt.Errorf("block %d: invalid hash", i)
		}
	}
	return nil
}

func calculateHash(b Block) string {
	data := fmt.Sprintf("%d%d%s%s%s%s%s",
		b.Index, b.Timestamp, b.PrevHash, b.Action, b.GameID, b.Actor, b.TxID)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
