// Package extract 负责把缓存中的模板归档展开到目标目录。
//
// 解包是单次前向遍历：归档根由第一个条目决定并在输出中去掉，可选的子目录过滤会把命中的
// 子树重新定位到目标目录根部。gzip 由 klauspost/compress 解压，未压缩的 tar 也可直接读取。
package extract
