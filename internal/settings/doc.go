/*
Package settings 管理生成服务的可变配置：服务地址、默认生成参数、
放大参数与详略模式。

每个作业在准入时读取一次 Snapshot，之后只使用这份副本；管理端通过
带校验的 Mutation（SetServiceURL / SetSize / SetSteps / SetGuidance /
SetSeed / SetNegativePrompt / SetUpscale / SetVerbose）修改配置。

存储实现：

  - MemoryStore：进程内存储，重启后恢复为默认值
  - RedisStore：单个 JSON 文档，WATCH/MULTI 乐观锁更新，多副本共享
*/
package settings
