package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeRuina/timberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/zsocket"
	"github.com/Zereker/zsocket/reactor"
	"github.com/Zereker/zsocket/zmq"
)

var (
	pubAddr  = flag.String("pub", "tcp://127.0.0.1:5556", "publish/subscribe endpoint")
	pushAddr = flag.String("push", "tcp://127.0.0.1:5557", "push/pull endpoint")
	logfile  = flag.String("logfile", "", "rotating log file, stdout when empty")
	interval = flag.Duration("interval", 500*time.Millisecond, "publish interval")
)

func newLogger(path string) *zap.Logger {
	var out io.Writer = os.Stdout
	if path != "" {
		out = &timberjack.Logger{
			Filename:         path,
			MaxBackups:       7,
			MaxSize:          50,
			MaxAge:           7,
			Compression:      "none",
			LocalTime:        true,
			RotationInterval: 24 * time.Hour,
		}
	}

	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(out), zap.DebugLevel)
	return zap.New(core, zap.AddCaller())
}

func main() {
	flag.Parse()

	zl := newLogger(*logfile)
	defer zl.Sync()
	logger := zsocket.NewZapLogger(zl)

	loop, err := reactor.NewLoop(reactor.LoopLoggerOption(logger))
	if err != nil {
		zl.Fatal("failed to create reactor", zap.Error(err))
	}
	defer loop.Close()

	options := []zsocket.Option{
		zsocket.SocketFactoryOption(zmq.NewFactory()),
		zsocket.ReactorOption(loop),
		zsocket.LoggerOption(logger),
		zsocket.OnErrorOption(func(err error) zsocket.ErrorAction {
			zl.Warn("connection error", zap.Error(err))
			return zsocket.Continue
		}),
	}

	sub, err := zsocket.NewSubConn(func(m zsocket.Message) error {
		zl.Info("subscriber received", zap.ByteString("body", m.Body()))
		return nil
	}, options...)
	if err != nil {
		zl.Fatal("failed to create subscriber", zap.Error(err))
	}
	defer sub.Close()

	pull, err := zsocket.NewPullConn(func(m zsocket.Message) error {
		zl.Info("worker received", zap.ByteString("body", m.Body()))
		return nil
	}, options...)
	if err != nil {
		zl.Fatal("failed to create worker", zap.Error(err))
	}
	defer pull.Close()

	if err = sub.Subscribe("tick"); err != nil {
		zl.Fatal("subscribe failed", zap.Error(err))
	}
	if err = sub.Bind(*pubAddr); err != nil {
		zl.Fatal("bind failed", zap.String("addr", *pubAddr), zap.Error(err))
	}
	if err = pull.Bind(*pushAddr); err != nil {
		zl.Fatal("bind failed", zap.String("addr", *pushAddr), zap.Error(err))
	}

	pub, err := zsocket.NewPubConn(options...)
	if err != nil {
		zl.Fatal("failed to create publisher", zap.Error(err))
	}
	defer pub.Close()

	push, err := zsocket.NewPushConn(options...)
	if err != nil {
		zl.Fatal("failed to create pusher", zap.Error(err))
	}
	defer push.Close()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return loop.Run(gctx)
	})
	group.Go(func() error {
		if err := pub.Connect(*pubAddr); err != nil {
			return err
		}
		if err := push.Connect(*pushAddr); err != nil {
			return err
		}

		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		for n := 0; ; n++ {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
			}

			if err := pub.Send([]byte(fmt.Sprintf("tick %d", n))); err != nil {
				return err
			}
			if err := push.SendMulti([][]byte{[]byte("job"), []byte(fmt.Sprint(n))}); err != nil {
				return err
			}
		}
	})

	zl.Info("demo started", zap.String("pub", *pubAddr), zap.String("push", *pushAddr))
	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zl.Error("demo stopped", zap.Error(err))
		return
	}
	zl.Info("shutting down")
}
