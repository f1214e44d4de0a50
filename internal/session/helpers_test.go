package session

import (
	"net/netip"
	"time"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type sentPacket struct {
	data   []byte
	method types.DeliveryMethod
}

// fakePeer 记录发送内容的对端
type fakePeer struct {
	id           types.ConnectID
	ep           types.Endpoint
	sent         []sentPacket
	fail         error
	disconnected bool

	// deliver 非空时发送的数据交给它转发
	deliver func(data []byte, method types.DeliveryMethod)
}

var _ interfaces.Peer = (*fakePeer)(nil)

func newFakePeer(id types.ConnectID) *fakePeer {
	return &fakePeer{
		id: id,
		ep: types.NewEndpoint(netip.MustParseAddr("127.0.0.1"), uint16(9000+id)),
	}
}

func (p *fakePeer) ConnectID() types.ConnectID { return p.id }
func (p *fakePeer) Endpoint() types.Endpoint   { return p.ep }
func (p *fakePeer) Latency() time.Duration     { return 0 }

func (p *fakePeer) Send(data []byte, method types.DeliveryMethod) error {
	if p.fail != nil {
		return p.fail
	}
	buf := append([]byte(nil), data...)
	p.sent = append(p.sent, sentPacket{data: buf, method: method})
	if p.deliver != nil {
		p.deliver(buf, method)
	}
	return nil
}

func (p *fakePeer) Disconnect() error {
	p.disconnected = true
	return nil
}

// sentTypes 返回已发送消息的类型标签
func (p *fakePeer) sentTypes() []types.MsgType {
	out := make([]types.MsgType, 0, len(p.sent))
	for _, s := range p.sent {
		t, err := protocol.NewReader(s.data).ReadMsgType()
		if err == nil {
			out = append(out, t)
		}
	}
	return out
}

type discoveryCall struct {
	data []byte
	ep   types.Endpoint
	port int
}

// fakePeerManager 记录发现报文的 PeerManager
type fakePeerManager struct {
	polls     int
	responses []discoveryCall
	requests  []discoveryCall
}

var _ interfaces.PeerManager = (*fakePeerManager)(nil)

func (m *fakePeerManager) PollEvents()              { m.polls++ }
func (m *fakePeerManager) Peers() []interfaces.Peer { return nil }
func (m *fakePeerManager) PeersCount() int          { return 0 }
func (m *fakePeerManager) LocalPort() int           { return 7777 }
func (m *fakePeerManager) IsRunning() bool          { return true }

func (m *fakePeerManager) SendDiscoveryRequest(data []byte, port int) error {
	m.requests = append(m.requests, discoveryCall{data: data, port: port})
	return nil
}

func (m *fakePeerManager) SendDiscoveryRequestTo(data []byte, ep types.Endpoint) error {
	m.requests = append(m.requests, discoveryCall{data: data, ep: ep})
	return nil
}

func (m *fakePeerManager) SendDiscoveryResponse(data []byte, ep types.Endpoint) error {
	m.responses = append(m.responses, discoveryCall{data: data, ep: ep})
	return nil
}

// fakeSpawner 记录构造与销毁调用
type fakeSpawner struct {
	spawned   []types.NetworkID
	scenes    []uint32
	destroyed []types.NetworkID
	hidden    []types.NetworkID
}

var _ interfaces.Spawner = (*fakeSpawner)(nil)

func (s *fakeSpawner) Spawn(msg *protocol.ObjectSpawn) (any, error) {
	s.spawned = append(s.spawned, msg.NetworkID)
	return "obj:" + msg.AssetID, nil
}

func (s *fakeSpawner) SpawnScene(msg *protocol.ObjectSpawnScene) (any, error) {
	s.scenes = append(s.scenes, msg.SceneID)
	return msg.SceneID, nil
}

func (s *fakeSpawner) Destroy(id types.NetworkID, _ any) {
	s.destroyed = append(s.destroyed, id)
}

func (s *fakeSpawner) Hide(id types.NetworkID, _ any) {
	s.hidden = append(s.hidden, id)
}

func testSessionConfig() config.SessionConfig {
	return config.DefaultSessionConfig()
}

// link 在内存中连接服务端与客户端场景
//
// 发送的消息先入队，pump 时按顺序投递，模拟控制线程的轮询。
type link struct {
	server     *ServerScene
	client     *ClientScene
	serverSide *fakePeer // 服务端眼中的客户端
	clientSide *fakePeer // 客户端眼中的服务端
	queue      []func()
}

func newLink(server *ServerScene, client *ClientScene, id types.ConnectID) *link {
	l := &link{
		server:     server,
		client:     client,
		serverSide: newFakePeer(id),
		clientSide: newFakePeer(id),
	}
	l.serverSide.deliver = func(data []byte, method types.DeliveryMethod) {
		l.queue = append(l.queue, func() { client.OnNetworkReceive(l.clientSide, data, method) })
	}
	l.clientSide.deliver = func(data []byte, method types.DeliveryMethod) {
		l.queue = append(l.queue, func() { server.OnNetworkReceive(l.serverSide, data, method) })
	}
	return l
}

func (l *link) connect() {
	l.server.OnPeerConnected(l.serverSide)
	l.client.OnPeerConnected(l.clientSide)
	l.pump()
}

func (l *link) pump() {
	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue = l.queue[1:]
		next()
	}
}
