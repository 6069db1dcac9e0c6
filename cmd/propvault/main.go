// Package main 启动应用程序
package main

import (
	"os"

	"github.com/yeisme/propvault/pkg/cmd"
)

//	@title			PropVault API
//	@version		1.0
//	@description	PropVault 保存房产记录（分类、标量字段、图片与 PDF 附件），提供回收站、上架标记与检索.

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
