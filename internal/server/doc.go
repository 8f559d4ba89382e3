// Package server 提供镜像服务：把解析过的模板归档缓存在本机，并通过 Fiber HTTP 接口
// 发布给其他机器。其他 tarfetch 客户端可以直接使用 http provider 指向
// /-/templates/<provider>/<repo>，拿到的 JSON 描述里 tar 地址指向本服务的缓存。
package server
