package http

import (
	"embed"
	"io/fs"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
)

//go:embed web
var webFiles embed.FS

const htmlContentType = "text/html; charset=utf-8"

var (
	indexPage = mustRead("web/index.html")
	chatPage  = mustRead("web/chat.html")
)

func mustRead(name string) []byte {
	b, err := webFiles.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return b
}

func staticFS() stdhttp.FileSystem {
	sub, err := fs.Sub(webFiles, "web/static")
	if err != nil {
		panic(err)
	}
	return stdhttp.FS(sub)
}

func indexHandler(c *gin.Context) {
	c.Data(stdhttp.StatusOK, htmlContentType, indexPage)
}

func chatPageHandler(c *gin.Context) {
	c.Data(stdhttp.StatusOK, htmlContentType, chatPage)
}
