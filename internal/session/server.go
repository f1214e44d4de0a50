package session

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// CreatePlayerFunc 为连接创建玩家控制器
//
// 实现应调用 conn.SetPlayerController 放入控制器，并返回其错误。
type CreatePlayerFunc func(conn *Connection, controllerID int16) error

// ServerScene 服务端场景
//
// 负责分配网络 ID，维护每个连接的观察集合，并在连接就绪时发送初始状态。
type ServerScene struct {
	*Scene

	ids          IDAllocator
	maxPlayers   int
	createPlayer CreatePlayerFunc

	onConnected    func(conn *Connection)
	onDisconnected func(conn *Connection, info types.DisconnectInfo)
	onReady        func(conn *Connection)
	onPlayerAdded  func(conn *Connection, pc *PlayerController)
}

// NewServerScene 创建服务端场景
func NewServerScene(cfg config.SessionConfig) *ServerScene {
	s := &ServerScene{
		Scene:      newScene("server", cfg),
		maxPlayers: cfg.MaxPlayers,
	}
	s.hooks = sceneHooks{
		admit:          s.admit,
		connected:      s.connected,
		disconnected:   s.disconnected,
		answerDiscover: true,
	}
	s.registerHandlers()
	return s
}

func (s *ServerScene) registerHandlers() {
	s.mustRegister(protocol.MsgReady, s.handleReady)
	s.mustRegister(protocol.MsgRequestAddPlayer, s.handleRequestAddPlayer)
	s.mustRegister(protocol.MsgRequestRemovePlayer, s.handleRequestRemovePlayer)
}

// ============================================================================
//                              配置与回调
// ============================================================================

// MaxPlayers 最大玩家连接数
func (s *ServerScene) MaxPlayers() int {
	return s.maxPlayers
}

// SetMaxPlayers 设置最大玩家连接数，只影响之后的新连接
func (s *ServerScene) SetMaxPlayers(n int) {
	if n > 0 {
		s.maxPlayers = n
	}
}

// SetCreatePlayerFunc 设置玩家控制器创建函数，nil 恢复默认行为
func (s *ServerScene) SetCreatePlayerFunc(fn CreatePlayerFunc) {
	s.createPlayer = fn
}

// OnConnected 设置连接建立回调
func (s *ServerScene) OnConnected(fn func(conn *Connection)) {
	s.onConnected = fn
}

// OnDisconnected 设置连接断开回调
func (s *ServerScene) OnDisconnected(fn func(conn *Connection, info types.DisconnectInfo)) {
	s.onDisconnected = fn
}

// OnReady 设置连接就绪回调，在初始状态发送完成后调用
func (s *ServerScene) OnReady(fn func(conn *Connection)) {
	s.onReady = fn
}

// OnPlayerAdded 设置玩家控制器添加回调
func (s *ServerScene) OnPlayerAdded(fn func(conn *Connection, pc *PlayerController)) {
	s.onPlayerAdded = fn
}

// ============================================================================
//                              连接事件
// ============================================================================

func (s *ServerScene) admit(peer interfaces.Peer) bool {
	if len(s.conns) < s.maxPlayers {
		return true
	}
	log.Warn("玩家已满，断开新连接",
		"endpoint", peer.Endpoint(),
		"maxPlayers", s.maxPlayers)
	if err := peer.Disconnect(); err != nil {
		log.Debug("断开连接失败", "endpoint", peer.Endpoint(), "err", err)
	}
	return false
}

func (s *ServerScene) connected(conn *Connection) {
	if s.onConnected != nil {
		s.onConnected(conn)
	}
}

func (s *ServerScene) disconnected(conn *Connection, info types.DisconnectInfo) {
	// 断开连接拥有的实体回到服务端
	s.identities.Range(func(ident *Identity) bool {
		if ident.owner == conn {
			ident.owner = nil
		}
		return true
	})
	if s.onDisconnected != nil {
		s.onDisconnected(conn, info)
	}
}

// ============================================================================
//                              实体复制
// ============================================================================

// SpawnOptions 生成实体的可选参数
type SpawnOptions struct {
	Position protocol.Vector3
	Payload  []byte

	// Owner 拥有客户端权限的连接，nil 表示服务端拥有
	Owner *Connection
}

// Spawn 生成实体并复制到所有就绪连接
//
// 返回非 nil 的 Identity 时实体已注册，错误只表示部分连接发送失败。
// 网络 ID 耗尽时返回 ErrIDExhausted。
func (s *ServerScene) Spawn(assetID string, opts SpawnOptions) (*Identity, error) {
	id, err := s.ids.Next()
	if err != nil {
		return nil, err
	}
	ident := &Identity{
		id:       id,
		AssetID:  assetID,
		Position: opts.Position,
		Payload:  opts.Payload,
		owner:    opts.Owner,
	}
	return ident, s.spawn(ident)
}

// SpawnScene 激活场景中已存在的对象并复制到所有就绪连接
func (s *ServerScene) SpawnScene(sceneID uint32, opts SpawnOptions) (*Identity, error) {
	if sceneID == 0 {
		return nil, ErrInvalidSceneID
	}
	id, err := s.ids.Next()
	if err != nil {
		return nil, err
	}
	ident := &Identity{
		id:       id,
		SceneID:  sceneID,
		Position: opts.Position,
		Payload:  opts.Payload,
		owner:    opts.Owner,
	}
	return ident, s.spawn(ident)
}

func (s *ServerScene) spawn(ident *Identity) error {
	if err := s.identities.Register(ident); err != nil {
		return err
	}
	log.Debug("生成实体",
		"id", ident.id,
		"asset", ident.AssetID,
		"sceneID", ident.SceneID)

	for _, c := range s.conns {
		if c.IsReady() {
			c.AddToObserving(ident.id)
		}
	}
	err := s.SendToObserversOf(ident.id, ident.spawnMessage(), types.ReliableOrdered)
	if owner := ident.owner; owner != nil && owner.IsObserving(ident.id) {
		err = multierr.Append(err, s.sendAuthority(ident.id, true, owner))
	}
	return err
}

// Destroy 销毁实体并通知所有观察者
func (s *ServerScene) Destroy(id types.NetworkID) error {
	if !s.identities.Contains(id) {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	err := s.SendToObserversOf(id, &protocol.ObjectDestroy{NetworkID: id}, types.ReliableOrdered)
	for _, c := range s.conns {
		c.RemoveFromObserving(id)
	}
	s.identities.Unregister(id)
	log.Debug("销毁实体", "id", id)
	return err
}

// Hide 对单个连接隐藏实体
//
// 实体仍然存在，连接不再观察它。
func (s *ServerScene) Hide(id types.NetworkID, conn *Connection) error {
	if !s.identities.Contains(id) {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	if conn == nil {
		return ErrNoConnection
	}
	if !conn.RemoveFromObserving(id) {
		return nil
	}
	return s.SendTo(&protocol.ObjectHide{NetworkID: id}, types.ReliableOrdered, conn)
}

// Show 让连接重新观察实体
func (s *ServerScene) Show(id types.NetworkID, conn *Connection) error {
	ident, ok := s.identities.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	if conn == nil {
		return ErrNoConnection
	}
	if !conn.IsReady() {
		return ErrNotReady
	}
	if conn.IsObserving(id) {
		return nil
	}
	conn.AddToObserving(id)
	return s.SendTo(ident.spawnMessage(), types.ReliableOrdered, conn)
}

// AssignClientAuthority 把实体的控制权交给连接
//
// 之前的拥有者会收到失去权限的通知。
func (s *ServerScene) AssignClientAuthority(id types.NetworkID, conn *Connection) error {
	ident, ok := s.identities.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	if conn == nil {
		return ErrNoConnection
	}
	if ident.owner == conn {
		return nil
	}

	var err error
	if prev := ident.owner; prev != nil {
		err = s.sendAuthority(id, false, prev)
	}
	ident.owner = conn
	return multierr.Append(err, s.sendAuthority(id, true, conn))
}

// RemoveClientAuthority 收回实体的客户端控制权
func (s *ServerScene) RemoveClientAuthority(id types.NetworkID) error {
	ident, ok := s.identities.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	prev := ident.owner
	if prev == nil {
		return nil
	}
	ident.owner = nil
	return s.sendAuthority(id, false, prev)
}

func (s *ServerScene) sendAuthority(id types.NetworkID, authority bool, conn *Connection) error {
	msg := &protocol.ClientAuthority{NetworkID: id, Authority: authority}
	return s.SendTo(msg, types.ReliableOrdered, conn)
}

// sendInitialState 向刚就绪的连接发送所有实体
//
// 以 SpawnFinished(Begin) 开始、SpawnFinished(End) 结束。
func (s *ServerScene) sendInitialState(conn *Connection) error {
	err := s.SendTo(&protocol.ObjectSpawnFinished{State: protocol.SpawnFinishedBegin}, types.ReliableOrdered, conn)

	s.identities.Range(func(ident *Identity) bool {
		conn.AddToObserving(ident.id)
		err = multierr.Append(err, s.SendTo(ident.spawnMessage(), types.ReliableOrdered, conn))
		if ident.owner == conn {
			err = multierr.Append(err, s.sendAuthority(ident.id, true, conn))
		}
		return true
	})

	return multierr.Append(err,
		s.SendTo(&protocol.ObjectSpawnFinished{State: protocol.SpawnFinishedEnd}, types.ReliableOrdered, conn))
}

// ============================================================================
//                              玩家控制器
// ============================================================================

// AddPlayerControllerToConnection 为连接添加玩家控制器
//
// id 为负或槽位已有有效控制器时返回错误，槽位保持不变。
func (s *ServerScene) AddPlayerControllerToConnection(conn *Connection, id int16) error {
	if conn == nil {
		return ErrNoConnection
	}
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidControllerID, id)
	}
	if _, ok := conn.PlayerController(id); ok {
		return fmt.Errorf("%w: %d", ErrPlayerSlotTaken, id)
	}

	if s.createPlayer != nil {
		return s.createPlayer(conn, id)
	}
	return conn.SetPlayerController(NewPlayerController(id))
}

// RemovePlayerControllerFromConnection 移除连接的玩家控制器
func (s *ServerScene) RemovePlayerControllerFromConnection(conn *Connection, id int16) bool {
	if conn == nil {
		return false
	}
	return conn.RemovePlayerController(id)
}

// ============================================================================
//                              消息处理
// ============================================================================

func (s *ServerScene) handleReady(msg *MessageReader) error {
	conn := msg.Conn
	if conn == nil {
		return ErrNoConnection
	}
	if conn.IsReady() {
		return nil
	}
	conn.SetReady(true)

	log.Debug("连接就绪", "conn", conn)
	if err := s.sendInitialState(conn); err != nil {
		return fmt.Errorf("send initial state: %w", err)
	}
	if s.onReady != nil {
		s.onReady(conn)
	}
	return nil
}

func (s *ServerScene) handleRequestAddPlayer(msg *MessageReader) error {
	if msg.Conn == nil {
		return ErrNoConnection
	}
	var req protocol.RequestAddPlayer
	if err := msg.ReadMessage(&req); err != nil {
		return err
	}
	if err := s.AddPlayerControllerToConnection(msg.Conn, req.PlayerControllerID); err != nil {
		return err
	}

	pc, ok := msg.Conn.PlayerController(req.PlayerControllerID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidControllerID, req.PlayerControllerID)
	}
	if s.onPlayerAdded != nil {
		s.onPlayerAdded(msg.Conn, pc)
	}
	reply := &protocol.AddPlayer{PlayerControllerID: pc.ID, NetworkID: pc.NetworkID}
	return s.SendTo(reply, types.ReliableOrdered, msg.Conn)
}

func (s *ServerScene) handleRequestRemovePlayer(msg *MessageReader) error {
	if msg.Conn == nil {
		return ErrNoConnection
	}
	var req protocol.RequestRemovePlayer
	if err := msg.ReadMessage(&req); err != nil {
		return err
	}
	if !s.RemovePlayerControllerFromConnection(msg.Conn, req.PlayerControllerID) {
		return fmt.Errorf("%w: %d", ErrInvalidControllerID, req.PlayerControllerID)
	}
	reply := &protocol.RemovePlayer{PlayerControllerID: req.PlayerControllerID}
	return s.SendTo(reply, types.ReliableOrdered, msg.Conn)
}
