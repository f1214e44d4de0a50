package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// 编译期接口检查
var (
	_ Message = (*ObjectSpawn)(nil)
	_ Message = (*ObjectSpawnScene)(nil)
	_ Message = (*ObjectSpawnFinished)(nil)
	_ Message = (*ObjectHide)(nil)
	_ Message = (*ObjectDestroy)(nil)
	_ Message = (*AddPlayer)(nil)
	_ Message = (*RemovePlayer)(nil)
	_ Message = (*RequestAddPlayer)(nil)
	_ Message = (*RequestRemovePlayer)(nil)
	_ Message = (*ClientAuthority)(nil)
	_ Message = (*Ready)(nil)
)

// Vector3 三维坐标
type Vector3 struct {
	X, Y, Z float32
}

func putVector3(w *Writer, first protowire.Number, v Vector3) {
	w.PutFloat32(first, v.X)
	w.PutFloat32(first+1, v.Y)
	w.PutFloat32(first+2, v.Z)
}

func readVector3(first, num protowire.Number, val Value, v *Vector3) bool {
	switch num {
	case first:
		v.X = val.Float32()
	case first + 1:
		v.Y = val.Float32()
	case first + 2:
		v.Z = val.Float32()
	default:
		return false
	}
	return true
}

// ============================================================================
//                              实体生成
// ============================================================================

// ObjectSpawn 生成实体
type ObjectSpawn struct {
	NetworkID types.NetworkID
	// AssetID 预制体/类型引用，由实体构造协作者解释
	AssetID  string
	Position Vector3
	// Payload 初始状态，对会话层不透明
	Payload []byte
}

// MsgType 实现 Message
func (m *ObjectSpawn) MsgType() types.MsgType { return MsgObjectSpawn }

// MarshalTo 实现 Message
func (m *ObjectSpawn) MarshalTo(w *Writer) {
	w.PutUint(1, uint64(m.NetworkID))
	w.PutString(2, m.AssetID)
	putVector3(w, 3, m.Position)
	w.PutBytes(6, m.Payload)
}

// UnmarshalFrom 实现 Message
func (m *ObjectSpawn) UnmarshalFrom(r *Reader) error {
	return r.ReadFields(func(num protowire.Number, v Value) error {
		switch num {
		case 1:
			id, err := v.NetworkID()
			if err != nil {
				return err
			}
			m.NetworkID = id
		case 2:
			m.AssetID = v.String()
		case 6:
			m.Payload = v.Bytes()
		default:
			readVector3(3, num, v, &m.Position)
		}
		return nil
	})
}

// ObjectSpawnScene 将场景中已存在的对象绑定到网络 ID
type ObjectSpawnScene struct {
	NetworkID types.NetworkID
	SceneID   uint32
	Position  Vector3
	Payload   []byte
}

// MsgType 实现 Message
func (m *ObjectSpawnScene) MsgType() types.MsgType { return MsgObjectSpawnScene }

// MarshalTo 实现 Message
func (m *ObjectSpawnScene) MarshalTo(w *Writer) {
	w.PutUint(1, uint64(m.NetworkID))
	w.PutUint(2, uint64(m.SceneID))
	putVector3(w, 3, m.Position)
	w.PutBytes(6, m.Payload)
}

// UnmarshalFrom 实现 Message
func (m *ObjectSpawnScene) UnmarshalFrom(r *Reader) error {
	return r.ReadFields(func(num protowire.Number, v Value) error {
		switch num {
		case 1:
			id, err := v.NetworkID()
			if err != nil {
				return err
			}
			m.NetworkID = id
		case 2:
			scene, err := v.Uint32()
			if err != nil {
				return err
			}
			m.SceneID = scene
		case 6:
			m.Payload = v.Bytes()
		default:
			readVector3(3, num, v, &m.Position)
		}
		return nil
	})
}

// 初始复制屏障状态
const (
	// SpawnFinishedBegin 初始状态复制开始
	SpawnFinishedBegin uint32 = 0
	// SpawnFinishedEnd 初始状态复制结束
	SpawnFinishedEnd uint32 = 1
)

// ObjectSpawnFinished 初始状态复制屏障
type ObjectSpawnFinished struct {
	State uint32
}

// MsgType 实现 Message
func (m *ObjectSpawnFinished) MsgType() types.MsgType { return MsgObjectSpawnFinished }

// MarshalTo 实现 Message
func (m *ObjectSpawnFinished) MarshalTo(w *Writer) {
	w.PutUint(1, uint64(m.State))
}

// UnmarshalFrom 实现 Message
func (m *ObjectSpawnFinished) UnmarshalFrom(r *Reader) error {
	return r.ReadFields(func(num protowire.Number, v Value) error {
		if num != 1 {
			return nil
		}
		state, err := v.Uint32()
		m.State = state
		return err
	})
}

// ============================================================================
//                              隐藏与销毁
// ============================================================================

// ObjectHide 对接收方隐藏实体
type ObjectHide struct {
	NetworkID types.NetworkID
}

// MsgType 实现 Message
func (m *ObjectHide) MsgType() types.MsgType { return MsgObjectHide }

// MarshalTo 实现 Message
func (m *ObjectHide) MarshalTo(w *Writer) {
	w.PutUint(1, uint64(m.NetworkID))
}

// UnmarshalFrom 实现 Message
func (m *ObjectHide) UnmarshalFrom(r *Reader) error {
	return readNetworkID(r, &m.NetworkID)
}

// ObjectDestroy 销毁实体
type ObjectDestroy struct {
	NetworkID types.NetworkID
}

// MsgType 实现 Message
func (m *ObjectDestroy) MsgType() types.MsgType { return MsgObjectDestroy }

// MarshalTo 实现 Message
func (m *ObjectDestroy) MarshalTo(w *Writer) {
	w.PutUint(1, uint64(m.NetworkID))
}

// UnmarshalFrom 实现 Message
func (m *ObjectDestroy) UnmarshalFrom(r *Reader) error {
	return readNetworkID(r, &m.NetworkID)
}

func readNetworkID(r *Reader, id *types.NetworkID) error {
	return r.ReadFields(func(num protowire.Number, v Value) error {
		if num != 1 {
			return nil
		}
		x, err := v.NetworkID()
		*id = x
		return err
	})
}

// ============================================================================
//                              玩家控制器
// ============================================================================

// AddPlayer 服务端确认已添加玩家控制器
type AddPlayer struct {
	PlayerControllerID int16
	// NetworkID 玩家控制器对应的实体（可能为 0）
	NetworkID types.NetworkID
}

// MsgType 实现 Message
func (m *AddPlayer) MsgType() types.MsgType { return MsgAddPlayer }

// MarshalTo 实现 Message
func (m *AddPlayer) MarshalTo(w *Writer) {
	w.PutInt(1, int64(m.PlayerControllerID))
	w.PutUint(2, uint64(m.NetworkID))
}

// UnmarshalFrom 实现 Message
func (m *AddPlayer) UnmarshalFrom(r *Reader) error {
	return r.ReadFields(func(num protowire.Number, v Value) error {
		switch num {
		case 1:
			pc, err := v.Int16()
			if err != nil {
				return err
			}
			m.PlayerControllerID = pc
		case 2:
			id, err := v.NetworkID()
			if err != nil {
				return err
			}
			m.NetworkID = id
		}
		return nil
	})
}

// RemovePlayer 服务端确认已移除玩家控制器
type RemovePlayer struct {
	PlayerControllerID int16
}

// MsgType 实现 Message
func (m *RemovePlayer) MsgType() types.MsgType { return MsgRemovePlayer }

// MarshalTo 实现 Message
func (m *RemovePlayer) MarshalTo(w *Writer) {
	w.PutInt(1, int64(m.PlayerControllerID))
}

// UnmarshalFrom 实现 Message
func (m *RemovePlayer) UnmarshalFrom(r *Reader) error {
	return readControllerID(r, &m.PlayerControllerID)
}

// RequestAddPlayer 客户端请求添加玩家控制器
type RequestAddPlayer struct {
	PlayerControllerID int16
	// Payload 附加数据，交给创建玩家的回调
	Payload []byte
}

// MsgType 实现 Message
func (m *RequestAddPlayer) MsgType() types.MsgType { return MsgRequestAddPlayer }

// MarshalTo 实现 Message
func (m *RequestAddPlayer) MarshalTo(w *Writer) {
	w.PutInt(1, int64(m.PlayerControllerID))
	w.PutBytes(2, m.Payload)
}

// UnmarshalFrom 实现 Message
func (m *RequestAddPlayer) UnmarshalFrom(r *Reader) error {
	return r.ReadFields(func(num protowire.Number, v Value) error {
		switch num {
		case 1:
			pc, err := v.Int16()
			if err != nil {
				return err
			}
			m.PlayerControllerID = pc
		case 2:
			m.Payload = v.Bytes()
		}
		return nil
	})
}

// RequestRemovePlayer 客户端请求移除玩家控制器
type RequestRemovePlayer struct {
	PlayerControllerID int16
}

// MsgType 实现 Message
func (m *RequestRemovePlayer) MsgType() types.MsgType { return MsgRequestRemovePlayer }

// MarshalTo 实现 Message
func (m *RequestRemovePlayer) MarshalTo(w *Writer) {
	w.PutInt(1, int64(m.PlayerControllerID))
}

// UnmarshalFrom 实现 Message
func (m *RequestRemovePlayer) UnmarshalFrom(r *Reader) error {
	return readControllerID(r, &m.PlayerControllerID)
}

func readControllerID(r *Reader, id *int16) error {
	return r.ReadFields(func(num protowire.Number, v Value) error {
		if num != 1 {
			return nil
		}
		x, err := v.Int16()
		*id = x
		return err
	})
}

// ============================================================================
//                              控制权与就绪
// ============================================================================

// ClientAuthority 将实体控制权交给（或收回自）接收方
type ClientAuthority struct {
	NetworkID types.NetworkID
	Authority bool
}

// MsgType 实现 Message
func (m *ClientAuthority) MsgType() types.MsgType { return MsgClientAuthority }

// MarshalTo 实现 Message
func (m *ClientAuthority) MarshalTo(w *Writer) {
	w.PutUint(1, uint64(m.NetworkID))
	w.PutBool(2, m.Authority)
}

// UnmarshalFrom 实现 Message
func (m *ClientAuthority) UnmarshalFrom(r *Reader) error {
	return r.ReadFields(func(num protowire.Number, v Value) error {
		switch num {
		case 1:
			id, err := v.NetworkID()
			if err != nil {
				return err
			}
			m.NetworkID = id
		case 2:
			m.Authority = v.Bool()
		}
		return nil
	})
}

// Ready 客户端就绪
type Ready struct{}

// MsgType 实现 Message
func (m *Ready) MsgType() types.MsgType { return MsgReady }

// MarshalTo 实现 Message
func (m *Ready) MarshalTo(*Writer) {}

// UnmarshalFrom 实现 Message
func (m *Ready) UnmarshalFrom(r *Reader) error {
	return r.ReadFields(func(protowire.Number, Value) error { return nil })
}
