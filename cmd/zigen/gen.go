package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/zigen/config"
	"github.com/BaSui01/zigen/types"
)

// =============================================================================
// 🎨 gen 命令：一次性生成
// =============================================================================

func runGen(args []string) int {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	outDir := fs.String("out", ".", "Directory for generated images")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// 日志写 stderr，stdout 只输出文件路径
	logCfg := cfg.Log
	logCfg.OutputPaths = []string{"stderr"}
	logger, _ := initLogger(logCfg)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt := strings.Join(fs.Args(), " ")
	if _, err := generateToDir(ctx, cfg, prompt, *outDir, os.Stdout, os.Stderr, logger); err != nil {
		logger.Debug("generation failed", zap.Error(err))
		return 1
	}
	return 0
}

// generateToDir 运行一个任务并把解码后的图像写入 dir，返回写入的文件路径。
// 状态与失败消息写 status，文件路径逐行写 out。
func generateToDir(ctx context.Context, cfg *config.Config, prompt, dir string, out, status io.Writer, logger *zap.Logger) ([]string, error) {
	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{})
	if err != nil {
		fmt.Fprintln(status, err)
		return nil, err
	}
	defer rt.Close()

	snap, err := rt.store.Snapshot(ctx)
	if err != nil {
		fmt.Fprintln(status, err)
		return nil, err
	}

	jobID := uuid.NewString()
	ctx = types.WithJobID(ctx, jobID)

	images, err := rt.pipeline.Run(ctx, prompt, snap, &cliSink{w: status})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintln(status, err)
		return nil, err
	}

	paths := make([]string, 0, len(images))
	for i, img := range images {
		raw, err := decodeImage(img)
		if err != nil {
			fmt.Fprintf(status, "image %d: %v\n", i+1, err)
			return paths, err
		}
		name := fmt.Sprintf("zigen-%s-%d%s", jobID[:8], i+1, imageExt(raw))
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			fmt.Fprintln(status, err)
			return paths, err
		}
		paths = append(paths, path)
		fmt.Fprintln(out, path)
	}
	return paths, nil
}

func decodeImage(img types.EncodedImage) ([]byte, error) {
	s := strings.TrimSpace(img.String())
	if s == "" {
		return nil, errors.New("empty image data")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// 部分服务省略 padding
		if raw, rerr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rerr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return raw, nil
}

func imageExt(raw []byte) string {
	switch http.DetectContentType(raw) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// cliSink 把用户消息写到终端
type cliSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *cliSink) Status(_ context.Context, text string) error {
	return s.line(text)
}

func (s *cliSink) Images(_ context.Context, images []types.EncodedImage) error {
	return s.line(fmt.Sprintf("received %d image(s)", len(images)))
}

func (s *cliSink) Failure(_ context.Context, text string) error {
	return s.line(text)
}

func (s *cliSink) line(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, text)
	return err
}
