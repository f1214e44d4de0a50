// Package protocol 定义 tinynet 会话层的线上消息格式
//
// # 帧格式
//
// 每条消息以 2 字节小端序的类型标签（types.MsgType）开头，
// 之后是消息体。消息体使用 protobuf 线格式（protowire）按字段编号编码：
//
//	+--------+--------+---------------------------------+
//	| tag lo | tag hi | field 1 | field 2 | ...         |
//	+--------+--------+---------------------------------+
//
// 未知字段在解码时被跳过，较新的对端增加字段不会破坏旧版本。
// 零值字段不写出，解码时按零值处理。
//
// # 复制消息
//
// 实体复制使用一组固定消息：ObjectSpawn, ObjectSpawnScene,
// ObjectSpawnFinished, ObjectHide, ObjectDestroy, AddPlayer, RemovePlayer,
// RequestAddPlayer, RequestRemovePlayer, ClientAuthority, Ready。
// 它们只承载数据，效果由会话层的外部协作者应用。
//
// # 使用示例
//
//	w := protocol.NewWriter(64)
//	data := protocol.Encode(w, &protocol.ObjectDestroy{NetworkID: 42})
//
//	r := protocol.NewReader(data)
//	t, _ := r.ReadMsgType()
//	var msg protocol.ObjectDestroy
//	_ = r.Decode(&msg)
package protocol
