package session

import (
	"fmt"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// ClientScene 客户端场景
//
// 把服务端复制的实体通过 Spawner 在本地构造，并维护到主机的连接。
type ClientScene struct {
	*Scene

	spawner   interfaces.Spawner
	host      *Connection
	spawning  bool
	autoReady bool

	onConnected     func(conn *Connection)
	onDisconnected  func(info types.DisconnectInfo)
	onSpawnFinished func()
	onDiscovered    func(from types.Endpoint)
	onAuthority     func(ident *Identity)
}

// NewClientScene 创建客户端场景
//
// spawner 为 nil 时实体只登记到注册表，不做本地构造。
func NewClientScene(cfg config.SessionConfig, spawner interfaces.Spawner) *ClientScene {
	s := &ClientScene{
		Scene:     newScene("client", cfg),
		spawner:   spawner,
		autoReady: cfg.AutoReady,
	}
	s.hooks = sceneHooks{
		connected:    s.connected,
		disconnected: s.disconnected,
		discovered:   s.discovered,
	}
	s.registerHandlers()
	return s
}

func (s *ClientScene) registerHandlers() {
	s.mustRegister(protocol.MsgObjectSpawn, s.handleSpawn)
	s.mustRegister(protocol.MsgObjectSpawnScene, s.handleSpawnScene)
	s.mustRegister(protocol.MsgObjectSpawnFinished, s.handleSpawnFinished)
	s.mustRegister(protocol.MsgObjectDestroy, s.handleDestroy)
	s.mustRegister(protocol.MsgObjectHide, s.handleHide)
	s.mustRegister(protocol.MsgAddPlayer, s.handleAddPlayer)
	s.mustRegister(protocol.MsgRemovePlayer, s.handleRemovePlayer)
	s.mustRegister(protocol.MsgClientAuthority, s.handleClientAuthority)
}

// ============================================================================
//                              状态与回调
// ============================================================================

// Host 返回到主机的连接
func (s *ClientScene) Host() (*Connection, bool) {
	return s.host, s.host != nil
}

// IsSpawning 是否处于初始状态复制过程中
func (s *ClientScene) IsSpawning() bool {
	return s.spawning
}

// SetSpawner 设置实体构造协作者
func (s *ClientScene) SetSpawner(spawner interfaces.Spawner) {
	s.spawner = spawner
}

// SetAutoReady 设置连接后是否自动发送 Ready
func (s *ClientScene) SetAutoReady(auto bool) {
	s.autoReady = auto
}

// OnConnected 设置连接到主机的回调
func (s *ClientScene) OnConnected(fn func(conn *Connection)) {
	s.onConnected = fn
}

// OnDisconnected 设置与主机断开的回调
func (s *ClientScene) OnDisconnected(fn func(info types.DisconnectInfo)) {
	s.onDisconnected = fn
}

// OnSpawnFinished 设置初始状态复制完成回调
func (s *ClientScene) OnSpawnFinished(fn func()) {
	s.onSpawnFinished = fn
}

// OnDiscovered 设置发现服务端的回调
func (s *ClientScene) OnDiscovered(fn func(from types.Endpoint)) {
	s.onDiscovered = fn
}

// OnAuthorityChanged 设置实体权限变化回调
func (s *ClientScene) OnAuthorityChanged(fn func(ident *Identity)) {
	s.onAuthority = fn
}

// ============================================================================
//                              连接事件
// ============================================================================

func (s *ClientScene) connected(conn *Connection) {
	if s.host != nil {
		log.Warn("已连接主机，忽略额外的连接", "conn", conn)
		return
	}
	s.host = conn
	if s.onConnected != nil {
		s.onConnected(conn)
	}
	if s.autoReady {
		if err := s.Ready(); err != nil {
			log.Warn("发送 Ready 失败", "err", err)
		}
	}
}

func (s *ClientScene) disconnected(conn *Connection, info types.DisconnectInfo) {
	if conn != s.host {
		return
	}
	s.host = nil
	s.spawning = false
	s.clearIdentities()
	if s.onDisconnected != nil {
		s.onDisconnected(info)
	}
}

func (s *ClientScene) discovered(from types.Endpoint, _ []byte) {
	log.Info("发现服务端", "endpoint", from)
	if s.onDiscovered != nil {
		s.onDiscovered(from)
	}
}

// clearIdentities 销毁所有本地实体
func (s *ClientScene) clearIdentities() {
	s.identities.Range(func(ident *Identity) bool {
		if s.spawner != nil {
			s.spawner.Destroy(ident.id, ident.Handle)
		}
		return true
	})
	s.identities.Clear()
}

// ============================================================================
//                              向主机发送
// ============================================================================

// Ready 通知主机已准备好接收实体
func (s *ClientScene) Ready() error {
	if s.host == nil {
		return ErrNotConnected
	}
	if s.host.IsReady() {
		return nil
	}
	if err := s.SendTo(&protocol.Ready{}, types.ReliableOrdered, s.host); err != nil {
		return err
	}
	s.host.SetReady(true)
	return nil
}

// RequestAddPlayer 请求主机添加玩家控制器
func (s *ClientScene) RequestAddPlayer(id int16, payload []byte) error {
	if s.host == nil {
		return ErrNotConnected
	}
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidControllerID, id)
	}
	msg := &protocol.RequestAddPlayer{PlayerControllerID: id, Payload: payload}
	return s.SendTo(msg, types.ReliableOrdered, s.host)
}

// RequestRemovePlayer 请求主机移除玩家控制器
func (s *ClientScene) RequestRemovePlayer(id int16) error {
	if s.host == nil {
		return ErrNotConnected
	}
	if _, ok := s.host.PlayerController(id); !ok {
		return fmt.Errorf("%w: %d", ErrInvalidControllerID, id)
	}
	return s.SendTo(&protocol.RequestRemovePlayer{PlayerControllerID: id}, types.ReliableOrdered, s.host)
}

// Discover 向局域网广播发现请求
//
// 应答通过 OnDiscovered 回调报告。
func (s *ClientScene) Discover(port int) error {
	if s.pm == nil {
		return ErrNotBound
	}
	return s.pm.SendDiscoveryRequest(discoveryReply, port)
}

// DiscoverAt 向指定地址发送发现请求
func (s *ClientScene) DiscoverAt(ep types.Endpoint) error {
	if s.pm == nil {
		return ErrNotBound
	}
	return s.pm.SendDiscoveryRequestTo(discoveryReply, ep)
}

// ============================================================================
//                              消息处理
// ============================================================================

func (s *ClientScene) handleSpawn(msg *MessageReader) error {
	var m protocol.ObjectSpawn
	if err := msg.ReadMessage(&m); err != nil {
		return err
	}
	if s.identities.Contains(m.NetworkID) {
		return fmt.Errorf("%w: %s", ErrDuplicateNetworkID, m.NetworkID)
	}

	ident := &Identity{
		id:       m.NetworkID,
		AssetID:  m.AssetID,
		Position: m.Position,
		Payload:  m.Payload,
	}
	if s.spawner != nil {
		handle, err := s.spawner.Spawn(&m)
		if err != nil {
			return fmt.Errorf("spawn %s: %w", m.NetworkID, err)
		}
		ident.Handle = handle
	}
	return s.identities.Register(ident)
}

func (s *ClientScene) handleSpawnScene(msg *MessageReader) error {
	var m protocol.ObjectSpawnScene
	if err := msg.ReadMessage(&m); err != nil {
		return err
	}
	if m.SceneID == 0 {
		return ErrInvalidSceneID
	}
	if s.identities.Contains(m.NetworkID) {
		return fmt.Errorf("%w: %s", ErrDuplicateNetworkID, m.NetworkID)
	}

	ident := &Identity{
		id:       m.NetworkID,
		SceneID:  m.SceneID,
		Position: m.Position,
		Payload:  m.Payload,
	}
	if s.spawner != nil {
		handle, err := s.spawner.SpawnScene(&m)
		if err != nil {
			return fmt.Errorf("spawn scene object %d: %w", m.SceneID, err)
		}
		ident.Handle = handle
	}
	return s.identities.Register(ident)
}

func (s *ClientScene) handleSpawnFinished(msg *MessageReader) error {
	var m protocol.ObjectSpawnFinished
	if err := msg.ReadMessage(&m); err != nil {
		return err
	}
	switch m.State {
	case protocol.SpawnFinishedBegin:
		s.spawning = true
	case protocol.SpawnFinishedEnd:
		s.spawning = false
		log.Debug("初始状态复制完成", "objects", s.identities.Len())
		if s.onSpawnFinished != nil {
			s.onSpawnFinished()
		}
	default:
		return fmt.Errorf("unknown spawn finished state %d", m.State)
	}
	return nil
}

func (s *ClientScene) handleDestroy(msg *MessageReader) error {
	var m protocol.ObjectDestroy
	if err := msg.ReadMessage(&m); err != nil {
		return err
	}
	ident, ok := s.identities.Lookup(m.NetworkID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, m.NetworkID)
	}
	if s.spawner != nil {
		s.spawner.Destroy(ident.id, ident.Handle)
	}
	s.identities.Unregister(ident.id)
	return nil
}

func (s *ClientScene) handleHide(msg *MessageReader) error {
	var m protocol.ObjectHide
	if err := msg.ReadMessage(&m); err != nil {
		return err
	}
	ident, ok := s.identities.Lookup(m.NetworkID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, m.NetworkID)
	}
	if s.spawner != nil {
		s.spawner.Hide(ident.id, ident.Handle)
	}
	s.identities.Unregister(ident.id)
	return nil
}

func (s *ClientScene) handleAddPlayer(msg *MessageReader) error {
	var m protocol.AddPlayer
	if err := msg.ReadMessage(&m); err != nil {
		return err
	}
	if s.host == nil {
		return ErrNotConnected
	}
	pc := NewPlayerController(m.PlayerControllerID)
	pc.NetworkID = m.NetworkID
	return s.host.SetPlayerController(pc)
}

func (s *ClientScene) handleRemovePlayer(msg *MessageReader) error {
	var m protocol.RemovePlayer
	if err := msg.ReadMessage(&m); err != nil {
		return err
	}
	if s.host == nil {
		return ErrNotConnected
	}
	if !s.host.RemovePlayerController(m.PlayerControllerID) {
		return fmt.Errorf("%w: %d", ErrInvalidControllerID, m.PlayerControllerID)
	}
	return nil
}

func (s *ClientScene) handleClientAuthority(msg *MessageReader) error {
	var m protocol.ClientAuthority
	if err := msg.ReadMessage(&m); err != nil {
		return err
	}
	ident, ok := s.identities.Lookup(m.NetworkID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, m.NetworkID)
	}
	ident.authority = m.Authority
	if s.onAuthority != nil {
		s.onAuthority(ident)
	}
	return nil
}
