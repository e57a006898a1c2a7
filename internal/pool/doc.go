/*
Package pool 提供作业准入控制与对象池。

  - Gate       — 基于 semaphore.Weighted 的计数准入门，限制同时运行的生成作业数量
  - Pool[T]    — 带统计的泛型对象池
  - ByteBufferPool — 上游请求编码使用的字节缓冲池，超大缓冲不回收
*/
package pool
