/*
Package testutil 提供 zigen 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertImagesEqual / AssertErrorCode / AssertJSONEqual
  - 异步断言: AssertEventuallyTrue / WaitFor
  - 假上游: FakeUpstream 基于 httptest 提供 /generate 与 /upscale，
    支持替换处理函数并记录请求体（JSONResponse / RawResponse / EchoUpscale）
  - RecordingSink: 记录流水线推送的状态、图像与失败消息

# 使用示例

	up := testutil.NewFakeUpstream(t)
	up.OnGenerate(testutil.JSONResponse(200, map[string]any{"image": "AAAA"}))
	sink := testutil.NewRecordingSink()
*/
package testutil
