package testutil

import (
	"context"
	"sync"

	"github.com/BaSui01/zigen/types"
)

// RecordingSink 记录流水线推送给用户的所有消息
type RecordingSink struct {
	mu       sync.Mutex
	statuses []string
	images   [][]types.EncodedImage
	failures []string
}

// NewRecordingSink 创建记录型 Sink
func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

// Status 记录状态消息
func (s *RecordingSink) Status(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, text)
	return nil
}

// Images 记录最终图像
func (s *RecordingSink) Images(_ context.Context, images []types.EncodedImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, append([]types.EncodedImage(nil), images...))
	return nil
}

// Failure 记录失败消息
func (s *RecordingSink) Failure(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, text)
	return nil
}

// Statuses 返回记录的状态消息副本
func (s *RecordingSink) Statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}

// Deliveries 返回每次 Images 调用收到的图像
func (s *RecordingSink) Deliveries() [][]types.EncodedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]types.EncodedImage(nil), s.images...)
}

// Failures 返回记录的失败消息副本
func (s *RecordingSink) Failures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.failures...)
}
