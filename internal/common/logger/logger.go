package logger

import (
	"log"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// Init はアプリケーション全体で使うロガーを初期化します
// production以外では開発向けのコンソール出力になります
func Init(env, level string) *zap.Logger {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	Set(l)
	return l
}

// Set は任意のロガーを差し替えます（テストではzap.NewNop()など）
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
	zap.ReplaceGlobals(l)
}

// L は現在のロガーを返します。未初期化の場合はNopロガーです
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// Sync はバッファされたログを書き出します
func Sync() {
	_ = L().Sync()
}
