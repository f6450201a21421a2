package shared

// AggregateRoot 聚合根接口
// 聚合根是聚合的入口点，维护聚合的一致性边界，所有修改必须通过聚合根进行
type AggregateRoot interface {
	// ID 返回聚合根的全局唯一标识
	ID() string

	// PullEvents 获取并清空聚合根记录的领域事件
	// 应用服务在持久化成功之后调用，再交给事件发布管道
	PullEvents() []DomainEvent
}

// Entity 实体接口
// 通过标识判断相等性（即使属性相同，ID不同就是不同的实体）
type Entity interface {
	ID() string
}
