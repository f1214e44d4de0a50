package session

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/internal/util/logger"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

var log = logger.Logger("session")

// 编译期接口检查
var _ interfaces.EventListener = (*Scene)(nil)

// discoveryReply 发现请求的固定回复
var discoveryReply = []byte{1}

// sceneHooks 具体场景对基础事件的扩展
type sceneHooks struct {
	admit          func(peer interfaces.Peer) bool
	connected      func(conn *Connection)
	disconnected   func(conn *Connection, info types.DisconnectInfo)
	discovered     func(from types.Endpoint, data []byte)
	answerDiscover bool
}

// Scene 会话管理器的公共部分
//
// 持有连接列表、处理器表、实体注册表与发送缓冲区。Scene 的所有方法都必须在
// 控制线程（调用 Update 的线程）上调用。
type Scene struct {
	kind string
	id   uuid.UUID
	cfg  config.SessionConfig

	pm       interfaces.PeerManager
	handlers *Handlers

	conns []*Connection

	identities *Registry[*Identity]
	objects    *Registry[NetObject]

	writer *protocol.Writer
	reader MessageReader

	hooks sceneHooks
}

func newScene(kind string, cfg config.SessionConfig) *Scene {
	return &Scene{
		kind:       kind,
		id:         uuid.New(),
		cfg:        cfg,
		handlers:   NewHandlers(),
		conns:      make([]*Connection, 0, cfg.MaxPlayers),
		identities: NewRegistry[*Identity](),
		objects:    NewRegistry[NetObject](),
		writer:     protocol.NewWriter(cfg.WriterBufferSize),
	}
}

// ============================================================================
//                              基本信息
// ============================================================================

// Kind 场景类型（server/client）
func (s *Scene) Kind() string {
	return s.kind
}

// SessionID 场景实例 ID
func (s *Scene) SessionID() uuid.UUID {
	return s.id
}

// Bind 绑定 PeerManager
//
// PeerManager 需要以该场景作为事件监听器创建。
func (s *Scene) Bind(pm interfaces.PeerManager) {
	s.pm = pm
}

// PeerManager 返回绑定的 PeerManager
func (s *Scene) PeerManager() interfaces.PeerManager {
	return s.pm
}

// IsRunning 套接字与事件循环是否在运行
func (s *Scene) IsRunning() bool {
	return s.pm != nil && s.pm.IsRunning()
}

// IsConnected 是否至少连接了一个对端
func (s *Scene) IsConnected() bool {
	return s.pm != nil && s.pm.PeersCount() > 0
}

// Update 分发所有已排队的网络事件
//
// 由宿主应用周期性调用，例如每个模拟帧一次。
func (s *Scene) Update() {
	if s.pm != nil {
		s.pm.PollEvents()
	}
}

// ============================================================================
//                              处理器注册
// ============================================================================

// Handlers 返回处理器表
func (s *Scene) Handlers() *Handlers {
	return s.handlers
}

// RegisterHandler 注册处理器，覆盖已有的同类型处理器
func (s *Scene) RegisterHandler(t types.MsgType, fn HandlerFunc) {
	s.handlers.RegisterHandler(t, fn)
}

// RegisterHandlerSafe 注册处理器，拒绝重复注册
func (s *Scene) RegisterHandlerSafe(t types.MsgType, fn HandlerFunc) error {
	return s.handlers.RegisterHandlerSafe(t, fn)
}

// mustRegister 注册内置处理器
func (s *Scene) mustRegister(t types.MsgType, fn HandlerFunc) {
	if err := s.handlers.RegisterHandlerSafe(t, fn); err != nil {
		panic(err)
	}
}

// ============================================================================
//                              连接管理
// ============================================================================

// Connections 返回当前连接的副本
func (s *Scene) Connections() []*Connection {
	out := make([]*Connection, len(s.conns))
	copy(out, s.conns)
	return out
}

// ConnectionCount 当前连接数
func (s *Scene) ConnectionCount() int {
	return len(s.conns)
}

// ConnectionByPeer 按对端句柄查找连接
func (s *Scene) ConnectionByPeer(peer interfaces.Peer) (*Connection, bool) {
	for _, c := range s.conns {
		if c.peer == peer {
			return c, true
		}
	}
	return nil, false
}

// ConnectionByID 按连接 ID 查找连接
func (s *Scene) ConnectionByID(id types.ConnectID) (*Connection, bool) {
	for _, c := range s.conns {
		if c.ConnectID() == id {
			return c, true
		}
	}
	return nil, false
}

// RemoveConnectionByPeer 按对端句柄移除连接，返回是否找到
func (s *Scene) RemoveConnectionByPeer(peer interfaces.Peer) bool {
	for i, c := range s.conns {
		if c.peer == peer {
			s.removeAt(i)
			return true
		}
	}
	return false
}

// RemoveConnection 按连接 ID 移除连接，返回是否找到
func (s *Scene) RemoveConnection(id types.ConnectID) bool {
	for i, c := range s.conns {
		if c.ConnectID() == id {
			s.removeAt(i)
			return true
		}
	}
	return false
}

func (s *Scene) removeAt(i int) {
	copy(s.conns[i:], s.conns[i+1:])
	s.conns[len(s.conns)-1] = nil
	s.conns = s.conns[:len(s.conns)-1]
}

func (s *Scene) addConnection(peer interfaces.Peer) *Connection {
	c := newConnection(peer, s.cfg.MaxPlayerControllers)
	s.conns = append(s.conns, c)
	return c
}

// ============================================================================
//                              实体注册表
// ============================================================================

// Identity 按网络 ID 查找实体
func (s *Scene) Identity(id types.NetworkID) (*Identity, bool) {
	return s.identities.Lookup(id)
}

// Identities 返回实体注册表
func (s *Scene) Identities() *Registry[*Identity] {
	return s.identities
}

// RegisterObject 注册轻量网络对象
func (s *Scene) RegisterObject(obj NetObject) error {
	return s.objects.Register(obj)
}

// UnregisterObject 注销轻量网络对象
func (s *Scene) UnregisterObject(id types.NetworkID) bool {
	return s.objects.Unregister(id)
}

// Object 按网络 ID 查找轻量网络对象
func (s *Scene) Object(id types.NetworkID) (NetObject, bool) {
	return s.objects.Lookup(id)
}

// ============================================================================
//                              发送
// ============================================================================

func (s *Scene) encode(msg protocol.Message) []byte {
	return protocol.Encode(s.writer, msg)
}

// SendTo 向单个连接发送消息
func (s *Scene) SendTo(msg protocol.Message, method types.DeliveryMethod, conn *Connection) error {
	if conn == nil {
		return ErrNoConnection
	}
	return conn.Send(s.encode(msg), method)
}

// SendToAll 向所有连接发送消息
//
// 每个连接都会尝试发送，返回所有失败的合并错误。
func (s *Scene) SendToAll(msg protocol.Message, method types.DeliveryMethod) error {
	return s.broadcast(msg, method, nil)
}

// SendToAllReady 向所有就绪连接发送消息
//
// 未就绪的连接被跳过，其余连接照常发送。
func (s *Scene) SendToAllReady(msg protocol.Message, method types.DeliveryMethod) error {
	return s.broadcast(msg, method, (*Connection).IsReady)
}

// SendToObserversOf 向所有正在观察实体的连接发送消息
//
// 不在观察的连接被跳过，其余连接照常发送。
func (s *Scene) SendToObserversOf(id types.NetworkID, msg protocol.Message, method types.DeliveryMethod) error {
	return s.broadcast(msg, method, func(c *Connection) bool {
		return c.IsObserving(id)
	})
}

func (s *Scene) broadcast(msg protocol.Message, method types.DeliveryMethod, filter func(*Connection) bool) error {
	data := s.encode(msg)

	var errs error
	for _, c := range s.conns {
		if filter != nil && !filter(c) {
			continue
		}
		if err := c.Send(data, method); err != nil {
			log.Debug("发送失败",
				"scene", s.kind,
				"conn", c.ConnectID(),
				"type", protocol.MsgTypeName(msg.MsgType()),
				"err", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// ============================================================================
//                              EventListener 实现
// ============================================================================

// OnPeerConnected 实现 interfaces.EventListener
func (s *Scene) OnPeerConnected(peer interfaces.Peer) {
	log.Info("新的对端",
		"scene", s.kind,
		"endpoint", peer.Endpoint(),
		"connectID", peer.ConnectID())

	if s.hooks.admit != nil && !s.hooks.admit(peer) {
		return
	}
	c := s.addConnection(peer)
	if s.hooks.connected != nil {
		s.hooks.connected(c)
	}
}

// OnPeerDisconnected 实现 interfaces.EventListener
func (s *Scene) OnPeerDisconnected(peer interfaces.Peer, info types.DisconnectInfo) {
	log.Info("对端断开",
		"scene", s.kind,
		"endpoint", peer.Endpoint(),
		"reason", info.Reason)

	c, ok := s.ConnectionByPeer(peer)
	if !ok {
		return
	}
	s.RemoveConnectionByPeer(peer)
	if s.hooks.disconnected != nil {
		s.hooks.disconnected(c, info)
	}
}

// OnNetworkReceive 实现 interfaces.EventListener
func (s *Scene) OnNetworkReceive(peer interfaces.Peer, data []byte, method types.DeliveryMethod) {
	r := protocol.NewReader(data)
	t, err := r.ReadMsgType()
	if err != nil {
		log.Warn("丢弃无效消息",
			"scene", s.kind,
			"endpoint", peer.Endpoint(),
			"len", len(data),
			"err", err)
		return
	}

	fn, ok := s.handlers.Get(t)
	if !ok {
		log.Debug("未注册的消息类型",
			"scene", s.kind,
			"type", protocol.MsgTypeName(t),
			"endpoint", peer.Endpoint())
		return
	}

	conn, _ := s.ConnectionByPeer(peer)
	s.reader = MessageReader{
		MsgType: t,
		Reader:  r,
		Conn:    conn,
		Method:  method,
	}
	if err := fn(&s.reader); err != nil {
		log.Warn("处理消息失败",
			"scene", s.kind,
			"type", protocol.MsgTypeName(t),
			"endpoint", peer.Endpoint(),
			"err", err)
	} else {
		log.Debug("收到消息",
			"scene", s.kind,
			"type", protocol.MsgTypeName(t),
			"endpoint", peer.Endpoint())
	}
	s.reader = MessageReader{}
}

// OnNetworkReceiveUnconnected 实现 interfaces.EventListener
func (s *Scene) OnNetworkReceiveUnconnected(from types.Endpoint, data []byte, kind types.UnconnectedKind) {
	log.Debug("收到无连接消息",
		"scene", s.kind,
		"from", from,
		"kind", kind)

	switch kind {
	case types.UnconnectedDiscoveryRequest:
		if !s.hooks.answerDiscover || s.pm == nil {
			return
		}
		if err := s.pm.SendDiscoveryResponse(discoveryReply, from); err != nil {
			log.Debug("发现回复失败", "scene", s.kind, "to", from, "err", err)
		}
	case types.UnconnectedDiscoveryResponse:
		if s.hooks.discovered != nil {
			s.hooks.discovered(from, data)
		}
	}
}

// OnNetworkError 实现 interfaces.EventListener
func (s *Scene) OnNetworkError(from types.Endpoint, code int) {
	log.Warn("网络错误",
		"scene", s.kind,
		"code", code,
		"endpoint", from)
}

// OnNetworkLatencyUpdate 实现 interfaces.EventListener
func (s *Scene) OnNetworkLatencyUpdate(peer interfaces.Peer, latency time.Duration) {
	log.Debug("延迟更新",
		"scene", s.kind,
		"endpoint", peer.Endpoint(),
		"latency", latency)
}
