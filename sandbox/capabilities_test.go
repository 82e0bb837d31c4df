package sandbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/sagarc03/cryptosheet/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runJSON evaluates source wrapped in JSON.stringify so results can be
// compared without caring about exported Go types.
func runJSON(t *testing.T, source string, caps ...string) string {
	t.Helper()
	out, ok := run(t, "JSON.stringify("+source+")", caps...).(string)
	require.True(t, ok, source)
	return out
}

func TestCrypto(t *testing.T) {
	t.Parallel()

	tt := []struct {
		Name   string
		Source string
		Want   string
	}{
		{Name: "sha256", Source: "crypto.createHash('sha256').update('abc').digest('hex')", Want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{Name: "sha256 default hex", Source: "crypto.createHash('SHA256').update('a').update('bc').digest()", Want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{Name: "md5", Source: "crypto.createHash('md5').update('').digest('hex')", Want: "d41d8cd98f00b204e9800998ecf8427e"},
		{Name: "sha1 base64", Source: "crypto.createHash('sha1').update('abc').digest('base64')", Want: "qZk+NkcGgWq6PiVxeFDCbJzQ2J0="},
		{Name: "keccak256", Source: "crypto.createHash('keccak256').update('').digest('hex')", Want: "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{Name: "sha3-256", Source: "crypto.createHash('sha3-256').update('').digest('hex')", Want: "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"},
		{Name: "blake3", Source: "crypto.createHash('blake3').update('').digest('hex')", Want: "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		{Name: "hex input", Source: "crypto.createHash('sha256').update('616263', 'hex').digest('hex')", Want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{Name: "hmac", Source: "crypto.createHmac('sha256', 'key').update('The quick brown fox jumps over the lazy dog').digest('hex')", Want: "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.Want, run(t, tc.Source))
		})
	}
}

func TestCrypto_Random(t *testing.T) {
	t.Parallel()

	hexBytes, ok := run(t, "crypto.randomBytes(16)").(string)
	require.True(t, ok)
	assert.Len(t, hexBytes, 32)

	id, ok := run(t, "crypto.randomUUID()").(string)
	require.True(t, ok)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)

	assert.Equal(t, true, run(t, "crypto.timingSafeEqual('abc', 'abc')"))
	assert.Equal(t, false, run(t, "crypto.timingSafeEqual('abc', 'abd')"))
	assert.Equal(t, true, run(t, "crypto.getHashes().includes('blake3')"))

	exec := sandbox.New(sandbox.Config{})
	_, err := exec.Execute(context.Background(), sandbox.Job{Source: "crypto.randomBytes(1 << 20)", Timeout: time.Second})
	assert.Error(t, err)
}

func TestLodash(t *testing.T) {
	t.Parallel()

	tt := []struct {
		Name   string
		Source string
		Want   string
	}{
		{Name: "chunk", Source: "_.chunk([1,2,3,4,5], 2)", Want: `[[1,2],[3,4],[5]]`},
		{Name: "compact", Source: "_.compact([0, 1, false, 2, '', 3, null])", Want: `[1,2,3]`},
		{Name: "uniq", Source: "_.uniq([2, 1, 2, '2', 1])", Want: `[2,1,"2"]`},
		{Name: "flatten", Source: "_.flatten([1, [2, [3, [4]]], 5])", Want: `[1,2,[3,[4]],5]`},
		{Name: "flattenDeep", Source: "_.flattenDeep([1, [2, [3, [4]]], 5])", Want: `[1,2,3,4,5]`},
		{Name: "head and last", Source: "[_.head([7,8,9]), _.last([7,8,9]), _.first([])]", Want: `[7,9,null]`},
		{Name: "take", Source: "_.take([1,2,3], 2)", Want: `[1,2]`},
		{Name: "sum", Source: "_.sum([4, 2, 8, 6])", Want: `20`},
		{Name: "sumBy", Source: "_.sumBy([{n: 4}, {n: 6}], 'n')", Want: `10`},
		{Name: "sumBy function", Source: "_.sumBy([{n: 4}, {n: 6}], o => o.n * 2)", Want: `20`},
		{Name: "mean", Source: "_.mean([4, 2, 8, 6])", Want: `5`},
		{Name: "max and min", Source: "[_.max([4, 2, 8, 6]), _.min([4, 2, 8, 6]), _.max([])]", Want: `[8,2,null]`},
		{Name: "range", Source: "[_.range(4), _.range(1, 5), _.range(0, 20, 5), _.range(-4)]", Want: `[[0,1,2,3],[1,2,3,4],[0,5,10,15],[0,-1,-2,-3]]`},
		{Name: "sortBy", Source: "_.sortBy([{u: 'fred', a: 48}, {u: 'barney', a: 36}, {u: 'abe', a: 40}], 'a').map(o => o.u)", Want: `["barney","abe","fred"]`},
		{Name: "sortBy function", Source: "_.sortBy([3, 1, 2], x => -x)", Want: `[3,2,1]`},
		{Name: "keyBy", Source: "_.keyBy([{id: 'a', v: 1}, {id: 'b', v: 2}], 'id')", Want: `{"a":{"id":"a","v":1},"b":{"id":"b","v":2}}`},
		{Name: "groupBy", Source: "_.groupBy([6.1, 4.2, 6.3], Math.floor)", Want: `{"4":[4.2],"6":[6.1,6.3]}`},
		{Name: "countBy", Source: "_.countBy(['one', 'two', 'three'], s => s.length)", Want: `{"3":2,"5":1}`},
		{Name: "pick", Source: "_.pick({a: 1, b: '2', c: 3}, ['a', 'c'])", Want: `{"a":1,"c":3}`},
		{Name: "omit", Source: "_.omit({a: 1, b: '2', c: 3}, 'a', 'c')", Want: `{"b":"2"}`},
		{Name: "get", Source: "[_.get({a: [{b: {c: 3}}]}, 'a.0.b.c'), _.get({a: 1}, 'x.y', 'dflt')]", Want: `[3,"dflt"]`},
		{Name: "zip", Source: "_.zip(['a', 'b'], [1, 2], [true, false])", Want: `[["a",1,true],["b",2,false]]`},
		{Name: "intersection", Source: "_.intersection([2, 1], [2, 3])", Want: `[2]`},
		{Name: "difference", Source: "_.difference([2, 1], [2, 3])", Want: `[1]`},
		{Name: "union", Source: "_.union([2], [1, 2])", Want: `[2,1]`},
		{Name: "isEmpty", Source: "[_.isEmpty([]), _.isEmpty({}), _.isEmpty([1]), _.isEmpty({a: 1}), _.isEmpty(null)]", Want: `[true,true,false,false,true]`},
		{Name: "lodash alias", Source: "lodash === _", Want: `true`},
		{Name: "map", Source: "_.map([1, 2], x => x * 2)", Want: `[2,4]`},
		{Name: "map property", Source: "_.map([{n: 'a'}, {n: 'b'}], 'n')", Want: `["a","b"]`},
		{Name: "map object", Source: "_.map({a: 1, b: 2}, (v, k) => k + v)", Want: `["a1","b2"]`},
		{Name: "filter", Source: "_.filter([1, 2, 3, 4], x => x % 2 === 0)", Want: `[2,4]`},
		{Name: "filter matches", Source: "_.filter([{a: 1, b: 2}, {a: 1, b: 3}, {a: 2}], {a: 1, b: 3})", Want: `[{"a":1,"b":3}]`},
		{Name: "filter matchesProperty", Source: "_.filter([{a: 1}, {a: 2}], ['a', 2])", Want: `[{"a":2}]`},
		{Name: "reduce", Source: "_.reduce([1, 2, 3], (acc, x) => acc + x, 10)", Want: `16`},
		{Name: "reduce without seed", Source: "_.reduce([1, 2, 3], (acc, x) => acc * x)", Want: `6`},
		{Name: "reduce object", Source: "_.reduce({a: 1, b: 2}, (acc, v, k) => { acc[v] = k; return acc }, {})", Want: `{"1":"a","2":"b"}`},
		{Name: "find", Source: "[_.find([{u: 'a', active: false}, {u: 'b', active: true}], 'active'), _.find([1, 2], x => x > 5)]", Want: `[{"u":"b","active":true},null]`},
		{Name: "uniqBy", Source: "_.uniqBy([2.1, 1.2, 2.3], Math.floor)", Want: `[2.1,1.2]`},
		{Name: "orderBy", Source: "_.orderBy([{u: 'fred', a: 48}, {u: 'barney', a: 34}, {u: 'fred', a: 40}], ['u', 'a'], ['asc', 'desc']).map(o => o.u + o.a)", Want: `["barney34","fred48","fred40"]`},
		{Name: "cloneDeep", Source: "(() => { const src = {a: [{b: 1}]}; const c = _.cloneDeep(src); c.a[0].b = 2; return [src.a[0].b, c.a[0].b] })()", Want: `[1,2]`},
		{Name: "merge", Source: "_.merge({a: [{b: 2}, {d: 4}]}, {a: [{c: 3}, {e: 5}]})", Want: `{"a":[{"b":2,"c":3},{"d":4,"e":5}]}`},
		{Name: "isEqual", Source: "[_.isEqual({a: [1, {b: 2}]}, {a: [1, {b: 2}]}), _.isEqual([1], [2])]", Want: `[true,false]`},
		{Name: "set and has", Source: "(() => { const o = {}; _.set(o, 'a[0].b', 5); return [o, _.has(o, 'a.0.b'), _.has(o, 'a.1')] })()", Want: `[{"a":[{"b":5}]},true,false]`},
		{Name: "partition", Source: "_.partition([1, 2, 3, 4], x => x > 2)", Want: `[[3,4],[1,2]]`},
		{Name: "mapValues", Source: "_.mapValues({a: {n: 1}, b: {n: 2}}, 'n')", Want: `{"a":1,"b":2}`},
		{Name: "string case", Source: "[_.camelCase('Foo Bar'), _.kebabCase('fooBar'), _.snakeCase('--FOO-BAR--'), _.startCase('fooBar')]", Want: `["fooBar","foo-bar","foo_bar","Foo Bar"]`},
		{Name: "pad and truncate", Source: "[_.padStart('7', 3, '0'), _.truncate('hi-diddly-ho there, neighborino', {length: 24, separator: ' '})]", Want: `["007","hi-diddly-ho there,..."]`},
		{Name: "round with precision", Source: "[_.round(4.006, 2), _.floor(0.046, 2), _.ceil(4.006, 2)]", Want: `[4.01,0.04,4.01]`},
		{Name: "times", Source: "_.times(3, i => i * i)", Want: `[0,1,4]`},
		{Name: "explicit chain", Source: "_.chain([1, 2, 3, 4]).filter(x => x % 2).map(x => x * 10).value()", Want: `[10,30]`},
		{Name: "implicit chain", Source: "_([1, 2, 3]).map(x => x * 2).sum()", Want: `12`},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			assert.JSONEq(t, tc.Want, runJSON(t, tc.Source))
		})
	}
}

func TestLodash_IsolatedPerJob(t *testing.T) {
	t.Parallel()
	exec := sandbox.New(sandbox.Config{})
	ctx := context.Background()

	_, err := exec.Execute(ctx, sandbox.Job{Source: "_.map = () => 'patched'; _.extra = 1"})
	require.NoError(t, err)

	res, err := exec.Execute(ctx, sandbox.Job{Source: "_.map([1], x => x + 1)[0] + ':' + typeof _.extra"})
	require.NoError(t, err)
	assert.Equal(t, "2:undefined", res.Value)
}

func TestLodash_RangeTooLarge(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "range too large", run(t, "try { _.range(1e9) } catch (e) { e.message }"))
}

func TestLodash_IterateeErrorPropagates(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "caught: bad", run(t, "try { _.sortBy([1, 2], () => { throw new Error('bad') }) } catch (e) { 'caught: ' + e.message }"))
}

func TestLodash_IterateeLoopTimesOut(t *testing.T) {
	t.Parallel()
	exec := sandbox.New(sandbox.Config{})

	start := time.Now()
	_, err := exec.Execute(context.Background(), sandbox.Job{Source: "_.sortBy([1, 2], () => { for (;;) {} })", Timeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestChain(t *testing.T) {
	t.Parallel()
	const priv = "0x0000000000000000000000000000000000000000000000000000000000000001"

	tt := []struct {
		Name   string
		Source string
		Want   any
	}{
		{Name: "keccak256 empty", Source: "ethers.keccak256('0x')", Want: "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{Name: "function selector", Source: "ethers.id('transfer(address,uint256)').slice(0, 10)", Want: "0xa9059cbb"},
		{Name: "utf8 round trip", Source: "ethers.toUtf8String(ethers.toUtf8Bytes('gm'))", Want: "gm"},
		{Name: "hexlify number", Source: "ethers.hexlify(255)", Want: "0xff"},
		{Name: "isHexString", Source: "[ethers.isHexString('0x12ab'), ethers.isHexString('12ab'), ethers.isHexString('0xzz')].join()", Want: "true,false,false"},
		{Name: "computeAddress", Source: "ethers.computeAddress('" + priv + "')", Want: "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"},
		{Name: "getAddress checksums", Source: "ethers.getAddress('0x7e5f4552091a69125d5dfcb7b8c2659029395bdf')", Want: "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"},
		{Name: "isAddress", Source: "[ethers.isAddress('0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf'), ethers.isAddress('0x7E5F4552091A69125d5DfCb7b8C2659029395BDF'), ethers.isAddress('0x1234')].join()", Want: "true,false,false"},
		{Name: "sign and verify", Source: "ethers.verifyMessage('hello', ethers.signMessage('" + priv + "', 'hello'))", Want: "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"},
		{Name: "signature length", Source: "ethers.signMessage('" + priv + "', 'hello').length", Want: int64(132)},
		{Name: "parseEther", Source: "ethers.parseEther('1.5')", Want: "1500000000000000000"},
		{Name: "parseUnits gwei", Source: "ethers.parseUnits('21', 'gwei')", Want: "21000000000"},
		{Name: "formatEther", Source: "ethers.formatEther('1000000000000000000')", Want: "1.0"},
		{Name: "formatUnits", Source: "ethers.formatUnits('1234567', 6)", Want: "1.234567"},
		{Name: "formatUnits negative", Source: "ethers.formatUnits('-500', 3)", Want: "-0.5"},
		{Name: "base58 round trip", Source: "ethers.decodeBase58(ethers.encodeBase58('0x00ff10'))", Want: "0x00ff10"},
		{Name: "base58 encode", Source: "ethers.encodeBase58('0x68656c6c6f')", Want: "Cn8eVZg"},
		{Name: "random wallet", Source: "(w => ethers.computeAddress(w.privateKey) === w.address)(ethers.createRandomWallet())", Want: true},
		{Name: "utils alias", Source: "ethers.utils.id === ethers.id", Want: true},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.Want, run(t, tc.Source, sandbox.ChainCapability))
		})
	}
}

func TestChain_Errors(t *testing.T) {
	t.Parallel()
	exec := sandbox.New(sandbox.Config{})

	for _, source := range []string{
		"ethers.keccak256('not hex')",
		"ethers.parseUnits('1.0000001', 6)",
		"ethers.formatUnits('abc', 18)",
		"ethers.getAddress('0x7E5F4552091A69125d5DfCb7b8C2659029395BDF')",
		"ethers.verifyMessage('hello', '0x1234')",
		"ethers.parseUnits('1', 'lightyears')",
	} {
		_, err := exec.Execute(context.Background(), sandbox.Job{Source: source, Capabilities: []string{sandbox.ChainCapability}, Timeout: time.Second})
		assert.Error(t, err, source)
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()
	names := sandbox.DefaultRegistry().Names()
	assert.ElementsMatch(t, []string{sandbox.CryptoCapability, sandbox.LodashCapability, sandbox.ChainCapability}, names)
}
