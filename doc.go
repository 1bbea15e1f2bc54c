/*
Package swerve provides a single-host HTTP/1.1 server built on a fixed-size
worker pool, with keep-alive, pipelining, byte-range static file serving and
an LRU content cache.

Each accepted connection is owned by exactly one pool task for its whole
lifetime: the task reads requests incrementally, dispatches them through a
middleware-wrapped router, and writes responses either from memory or
streamed from disk in bounded chunks. The accept loop multiplexes the
listening descriptor with epoll/kqueue; SIGINT and SIGTERM flip a running
flag that drains the loop and stops the pool.

Quick Start

Basic usage example:

package main

import (
    "github.com/searchktools/swerve/app"
    "github.com/searchktools/swerve/config"
    "github.com/searchktools/swerve/core/http"
    "github.com/searchktools/swerve/core/router"
)

func main() {
    cfg := config.New()
    application := app.New(cfg)

    r := application.Router()
    r.Handle(http.MethodGet, "/hello", func(req *http.Request, params router.PathParams, body any) *http.Response {
        return http.NewResponse(http.StatusOK, http.ContentTypePlain, []byte("Hello, World!"))
    })

    application.Run()
}

Modules

The framework is organized into several modules:

  - app: Application lifecycle management
  - config: Configuration loading and management
  - logger: Leveled zerolog sink construction
  - core: Server accept loop
  - core/wire: Raw socket handle (bind/listen/accept/recv/send, timeouts)
  - core/poller: I/O multiplexing for the listener (epoll/kqueue)
  - core/pools: Worker pool and buffer pool
  - core/http: Request parsing and response building
  - core/router: Method+pattern routing, middleware, static files
  - core/cache: Bounded LRU of file contents
  - core/conn: Per-connection request lifecycle

For more information, see https://github.com/searchktools/swerve
*/
package swerve
