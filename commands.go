package cryptosheet

import "slices"

// supportedCommands is the closed set of store commands callers may run
// through the generic command endpoint. Only data commands on user keys are
// listed; administrative, scripting, connection, pub/sub and keyspace
// iteration commands are left out. Names are matched case-sensitively.
var supportedCommands = map[string]struct{}{}

func init() {
	for _, group := range [][]string{
		genericCommands,
		hashCommands,
		setCommands,
		sortedSetCommands,
		hyperLogLogCommands,
		geoCommands,
		stringCommands,
	} {
		for _, name := range group {
			supportedCommands[name] = struct{}{}
		}
	}
}

var genericCommands = []string{
	"COPY", "DEL", "DUMP", "EXISTS", "EXPIRE", "EXPIREAT", "EXPIRETIME",
	"OBJECT", "PERSIST", "PEXPIRE", "PEXPIREAT", "PEXPIRETIME", "PTTL",
	"RENAME", "RENAMENX", "RESTORE", "SORT", "SORT_RO", "TOUCH", "TTL",
	"TYPE", "UNLINK",
}

var hashCommands = []string{
	"HDEL", "HEXISTS", "HGET", "HGETALL", "HINCRBY", "HINCRBYFLOAT", "HKEYS",
	"HLEN", "HMGET", "HMSET", "HRANDFIELD", "HSCAN", "HSET", "HSETNX",
	"HSTRLEN", "HVALS",
}

var setCommands = []string{
	"SADD", "SCARD", "SDIFF", "SDIFFSTORE", "SINTER", "SINTERCARD",
	"SINTERSTORE", "SISMEMBER", "SMEMBERS", "SMISMEMBER", "SMOVE", "SPOP",
	"SRANDMEMBER", "SREM", "SSCAN", "SUNION", "SUNIONSTORE",
}

var sortedSetCommands = []string{
	"ZADD", "ZCARD", "ZCOUNT", "ZDIFF", "ZDIFFSTORE", "ZINCRBY", "ZINTER",
	"ZINTERCARD", "ZINTERSTORE", "ZLEXCOUNT", "ZMPOP", "ZMSCORE", "ZPOPMAX",
	"ZPOPMIN", "ZRANDMEMBER", "ZRANGE", "ZRANGEBYLEX", "ZRANGEBYSCORE",
	"ZRANGESTORE", "ZRANK", "ZREM", "ZREMRANGEBYLEX", "ZREMRANGEBYRANK",
	"ZREMRANGEBYSCORE", "ZREVRANGE", "ZREVRANGEBYLEX", "ZREVRANGEBYSCORE",
	"ZREVRANK", "ZSCAN", "ZSCORE", "ZUNION", "ZUNIONSTORE",
}

var hyperLogLogCommands = []string{
	"PFADD", "PFCOUNT", "PFMERGE",
}

var geoCommands = []string{
	"GEOADD", "GEODIST", "GEOHASH", "GEOPOS", "GEORADIUS",
	"GEORADIUSBYMEMBER", "GEORADIUSBYMEMBER_RO", "GEORADIUS_RO", "GEOSEARCH",
	"GEOSEARCHSTORE",
}

var stringCommands = []string{
	"APPEND", "DECR", "DECRBY", "GET", "GETDEL", "GETEX", "GETRANGE",
	"GETSET", "INCR", "INCRBY", "INCRBYFLOAT", "LCS", "MGET", "MSET",
	"MSETNX", "PSETEX", "SET", "SETEX", "SETNX", "SETRANGE", "STRLEN",
	"SUBSTR",
}

// IsAllowedCommand reports whether name is in the command allow-list.
func IsAllowedCommand(name string) bool {
	_, ok := supportedCommands[name]
	return ok
}

// SupportedCommands returns the allow-list in sorted order.
func SupportedCommands() []string {
	out := make([]string, 0, len(supportedCommands))
	for name := range supportedCommands {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
