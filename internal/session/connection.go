package session

import (
	"fmt"
	"sort"

	"github.com/dep2p/go-tinynet/pkg/interfaces"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// ============================================================================
//                              玩家控制器
// ============================================================================

// InvalidControllerID 占位槽位的控制器 ID
const InvalidControllerID int16 = -1

// PlayerController 连接上的一个玩家控制器槽位
type PlayerController struct {
	// ID 槽位下标，占位槽位为 InvalidControllerID
	ID int16

	// NetworkID 绑定的玩家实体，未绑定时为 0
	NetworkID types.NetworkID

	// Handle 应用自定义数据
	Handle any
}

// NewPlayerController 创建玩家控制器
func NewPlayerController(id int16) *PlayerController {
	return &PlayerController{ID: id}
}

// IsValid 槽位是否持有有效的控制器
func (p *PlayerController) IsValid() bool {
	return p != nil && p.ID >= 0
}

func invalidController() *PlayerController {
	return &PlayerController{ID: InvalidControllerID}
}

// ============================================================================
//                              连接
// ============================================================================

// Connection 一个已建立的对端会话
//
// Connection 由 Scene 在 OnPeerConnected 时创建，OnPeerDisconnected 或
// 显式移除时销毁。只能在控制线程上访问。
type Connection struct {
	peer           interfaces.Peer
	ready          bool
	maxControllers int
	players        []*PlayerController
	observing      map[types.NetworkID]struct{}
}

func newConnection(peer interfaces.Peer, maxControllers int) *Connection {
	return &Connection{
		peer:           peer,
		maxControllers: maxControllers,
		observing:      make(map[types.NetworkID]struct{}),
	}
}

// Peer 返回底层对端
func (c *Connection) Peer() interfaces.Peer {
	return c.peer
}

// ConnectID 返回连接标识
func (c *Connection) ConnectID() types.ConnectID {
	return c.peer.ConnectID()
}

// Endpoint 返回对端地址
func (c *Connection) Endpoint() types.Endpoint {
	return c.peer.Endpoint()
}

// IsReady 是否就绪（已完成初始状态同步的请求）
func (c *Connection) IsReady() bool {
	return c.ready
}

// SetReady 设置就绪状态
func (c *Connection) SetReady(ready bool) {
	c.ready = ready
}

// Send 发送原始字节
func (c *Connection) Send(data []byte, method types.DeliveryMethod) error {
	return c.peer.Send(data, method)
}

// Disconnect 断开连接
func (c *Connection) Disconnect() error {
	return c.peer.Disconnect()
}

// String 实现 fmt.Stringer
func (c *Connection) String() string {
	return fmt.Sprintf("conn(%d@%s)", c.ConnectID(), c.Endpoint())
}

// ============================================================================
//                              玩家控制器槽位
// ============================================================================

// SetPlayerController 把控制器放入 pc.ID 对应的槽位
//
// 槽位越界时扩容，中间空出的槽位以占位控制器填充；目标槽位已有有效控制器时
// 返回 ErrPlayerSlotTaken，不会覆盖。
func (c *Connection) SetPlayerController(pc *PlayerController) error {
	if pc == nil || pc.ID < 0 || int(pc.ID) >= c.maxControllers {
		return ErrInvalidControllerID
	}
	id := int(pc.ID)
	if id < len(c.players) && c.players[id].IsValid() {
		return fmt.Errorf("%w: %d", ErrPlayerSlotTaken, pc.ID)
	}
	for len(c.players) <= id {
		c.players = append(c.players, invalidController())
	}
	c.players[id] = pc
	return nil
}

// RemovePlayerController 把槽位重置为占位控制器，返回之前是否有效
func (c *Connection) RemovePlayerController(id int16) bool {
	if id < 0 || int(id) >= len(c.players) || !c.players[id].IsValid() {
		return false
	}
	c.players[id] = invalidController()
	return true
}

// PlayerController 返回槽位上的有效控制器
func (c *Connection) PlayerController(id int16) (*PlayerController, bool) {
	if id < 0 || int(id) >= len(c.players) || !c.players[id].IsValid() {
		return nil, false
	}
	return c.players[id], true
}

// PlayerControllers 返回所有槽位（包括占位槽位）的副本
func (c *Connection) PlayerControllers() []*PlayerController {
	out := make([]*PlayerController, len(c.players))
	copy(out, c.players)
	return out
}

// ============================================================================
//                              观察集合
// ============================================================================

// IsObserving 是否正在观察实体
func (c *Connection) IsObserving(id types.NetworkID) bool {
	_, ok := c.observing[id]
	return ok
}

// AddToObserving 开始观察实体
func (c *Connection) AddToObserving(id types.NetworkID) {
	c.observing[id] = struct{}{}
}

// RemoveFromObserving 停止观察实体，返回之前是否在观察
func (c *Connection) RemoveFromObserving(id types.NetworkID) bool {
	if _, ok := c.observing[id]; !ok {
		return false
	}
	delete(c.observing, id)
	return true
}

// Observing 返回正在观察的实体 ID（升序）
func (c *Connection) Observing() []types.NetworkID {
	ids := make([]types.NetworkID, 0, len(c.observing))
	for id := range c.observing {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
