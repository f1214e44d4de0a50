// Package types 定义 tinynet 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 tinynet 内部包。
// 所有类型都是纯值类型，用于在传输层、节点管理层与会话层之间传递数据。
//
// # 文件组织
//
//   - ids.go       - NetworkID, ConnectID, MsgType
//   - enums.go     - AddressFamily, DeliveryMethod, UnconnectedKind, DisconnectReason
//   - endpoint.go  - Endpoint 远端地址
//   - errors.go    - 公共错误定义
//
// # 相等语义
//
// Endpoint 是可比较的值类型，== 比较地址族、地址字节、端口与 zone，
// 接收循环依赖这一点判断数据报来源是否变化。
package types
