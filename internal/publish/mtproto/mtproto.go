// Package mtproto publishes badges as the profile photo of a Telegram user
// account over MTProto.
//
// The gotd client only exposes its API while Run is executing, so Connect
// starts Run in the background and blocks until authorization finished.
package mtproto

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"weatherbadge/internal/publish"
	"weatherbadge/internal/state"
	"weatherbadge/pkg/logx"
)

const uploadName = "icon.png"

type Config struct {
	AppID       int
	AppHash     string
	Phone       string
	Password    string
	SessionPath string
	// CodePrompt supplies the login code on first authorization. Defaults to
	// reading one line from stdin.
	CodePrompt func(ctx context.Context) (string, error)
}

// Publisher implements publish.Publisher on a logged-in user session.
type Publisher struct {
	log logx.Logger

	api *tg.Client
	up  *uploader.Uploader

	cancel    context.CancelFunc
	done      chan error
	closeOnce sync.Once
	closeErr  error
}

var _ publish.Publisher = (*Publisher)(nil)

// Connect opens the session, logging in if the session file has no
// authorization yet. ctx bounds the connect phase only.
func Connect(ctx context.Context, cfg Config, log logx.Logger) (*Publisher, error) {
	if cfg.AppID == 0 || strings.TrimSpace(cfg.AppHash) == "" {
		return nil, errors.New("mtproto: api_id and api_hash are required")
	}
	if cfg.CodePrompt == nil {
		cfg.CodePrompt = stdinCode
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	opts := telegram.Options{}
	if cfg.SessionPath != "" {
		opts.SessionStorage = &session.FileStorage{Path: cfg.SessionPath}
	}
	client := telegram.NewClient(cfg.AppID, cfg.AppHash, opts)

	flow := auth.NewFlow(
		auth.Constant(cfg.Phone, cfg.Password, auth.CodeAuthenticatorFunc(
			func(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
				log.Info("login code requested")
				return cfg.CodePrompt(ctx)
			},
		)),
		auth.SendCodeOptions{},
	)

	runCtx, cancel := context.WithCancel(context.Background())
	p := &Publisher{log: log, cancel: cancel, done: make(chan error, 1)}
	ready := make(chan struct{})

	go func() {
		p.done <- client.Run(runCtx, func(ctx context.Context) error {
			if err := client.Auth().IfNecessary(ctx, flow); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
			p.api = client.API()
			p.up = uploader.NewUploader(p.api)
			close(ready)
			<-ctx.Done()
			return nil
		})
	}()

	select {
	case <-ready:
		log.Info("mtproto session ready")
		return p, nil
	case err := <-p.done:
		cancel()
		if err == nil {
			err = errors.New("session closed during connect")
		}
		return nil, fmt.Errorf("mtproto: %w", err)
	case <-ctx.Done():
		cancel()
		<-p.done
		return nil, fmt.Errorf("mtproto: connect: %w", ctx.Err())
	}
}

func (p *Publisher) Upload(ctx context.Context, png []byte) (state.AssetHandle, error) {
	f, err := p.up.FromBytes(ctx, uploadName, png)
	if err != nil {
		return state.AssetHandle{}, mapErr("upload file", err)
	}
	res, err := p.api.PhotosUploadProfilePhoto(ctx, &tg.PhotosUploadProfilePhotoRequest{File: f})
	if err != nil {
		return state.AssetHandle{}, mapErr("set profile photo", err)
	}
	photo, ok := res.Photo.AsNotEmpty()
	if !ok {
		return state.AssetHandle{}, errors.New("mtproto: server returned an empty photo")
	}
	return state.AssetHandle{
		ID:            photo.ID,
		AccessToken:   photo.AccessHash,
		FileReference: photo.FileReference,
	}, nil
}

func (p *Publisher) Delete(ctx context.Context, handles []state.AssetHandle) error {
	if len(handles) == 0 {
		return nil
	}
	ids := make([]tg.InputPhotoClass, 0, len(handles))
	for _, h := range handles {
		ids = append(ids, &tg.InputPhoto{ID: h.ID, AccessHash: h.AccessToken, FileReference: h.FileReference})
	}
	if _, err := p.api.PhotosDeletePhotos(ctx, ids); err != nil {
		return mapErr("delete photos", err)
	}
	return nil
}

// Close stops the session and waits for the client to exit.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		if err := <-p.done; err != nil && !errors.Is(err, context.Canceled) {
			p.closeErr = fmt.Errorf("mtproto: %w", err)
		}
		p.log.Info("mtproto session closed")
	})
	return p.closeErr
}

// mapErr turns FLOOD_WAIT replies into publish.RateLimitError.
func mapErr(op string, err error) error {
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &publish.RateLimitError{Wait: d, Err: err}
	}
	return fmt.Errorf("mtproto: %s: %w", op, err)
}

func stdinCode(ctx context.Context) (string, error) {
	fmt.Fprint(os.Stderr, "Telegram login code: ")
	type result struct {
		code string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		ch <- result{strings.TrimSpace(line), err}
	}()
	select {
	case r := <-ch:
		if r.code == "" && r.err != nil {
			return "", r.err
		}
		return r.code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
