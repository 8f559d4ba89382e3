// Package template 串联 provider 解析、归档缓存与解包，提供 Download 与 Verify 两个入口。
package template
