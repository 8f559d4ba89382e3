// Package provider 把模板标识解析为可下载的模板描述。
//
// 每个 provider 实现 Resolver：git 托管商（github、gitlab、bitbucket、sourcehut）根据仓库、
// 子目录与 ref 拼出归档地址；http/https 直接使用给定 URL 或远端 JSON 描述；
// 配置中的 [[Provider]] 可以指向自建实例或基于 URL 模板的任意服务。
package provider
