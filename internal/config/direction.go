package config

import (
	"fmt"
	"strings"
)

// Direction 是连接的转发方向，建立连接时解析一次
type Direction int

const (
	DirectionTx   Direction = iota + 1 // 串口 -> UDP
	DirectionRx                        // UDP -> 串口
	DirectionTxRx                      // 双向
)

// ParseDirection 接受 "Tx"、"Rx"、"Tx/Rx"（也接受 "TxRx"、"tx-rx"）
func ParseDirection(s string) (Direction, error) {
	n := strings.ToLower(strings.NewReplacer("/", "", "-", "", " ", "").Replace(s))
	switch n {
	case "tx":
		return DirectionTx, nil
	case "rx":
		return DirectionRx, nil
	case "txrx":
		return DirectionTxRx, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

func (d Direction) HasTx() bool { return d == DirectionTx || d == DirectionTxRx }

func (d Direction) HasRx() bool { return d == DirectionRx || d == DirectionTxRx }

func (d Direction) String() string {
	switch d {
	case DirectionTx:
		return "Tx"
	case DirectionRx:
		return "Rx"
	case DirectionTxRx:
		return "Tx/Rx"
	default:
		return "unknown"
	}
}
