// File: cmd/wsecho/main.go
// Author: momentics <momentics@gmail.com>
//
// wsecho runs the echo server or sends a single message as a client,
// for quick manual interop checks.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/momentics/reactor-ws/api"
	"github.com/momentics/reactor-ws/client"
	"github.com/momentics/reactor-ws/server"
)

type echoHandler struct {
	api.NopHandler
}

func (echoHandler) OnMessage(c api.Conn, msg api.Message) {
	if msg.Kind == api.TextMessage {
		_ = c.SendText(msg.Text())
	} else {
		_ = c.SendBinary(msg.Payload)
	}
}

type printHandler struct {
	api.NopHandler
	got chan string
}

func (h printHandler) OnMessage(_ api.Conn, msg api.Message) {
	h.got <- msg.Text()
}

func main() {
	cmd := &cli.Command{
		Name:  "wsecho",
		Usage: "WebSocket echo server and probe client",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the echo server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: ":9001", Usage: "listen address"},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					addr := cmd.String("addr")
					log.Printf("wsecho listening on %s", addr)
					return server.Serve(addr, echoHandler{})
				},
			},
			{
				Name:  "send",
				Usage: "send one message and print the echo",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Value: "ws://127.0.0.1:9001/", Usage: "server URL"},
					&cli.StringFlag{Name: "message", Value: "hello", Usage: "text to send"},
					&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "dial and echo timeout"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					d, err := client.NewDialer()
					if err != nil {
						return err
					}
					defer d.Close()

					dialCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
					defer cancel()

					h := printHandler{got: make(chan string, 1)}
					conn, err := d.Dial(dialCtx, cmd.String("url"), h)
					if err != nil {
						return err
					}
					if err := conn.SendText(cmd.String("message")); err != nil {
						return err
					}
					select {
					case echo := <-h.got:
						fmt.Println(echo)
					case <-dialCtx.Done():
						return fmt.Errorf("no echo within %s", cmd.Duration("timeout"))
					}
					return conn.Close(1000, "done")
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
