package eth

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	internalmocks "github.com/nando-os/ghost-marks/internal/mocks"
)

const testABI = `[
	{"inputs":[{"name":"keys","type":"uint16[]"},{"name":"values","type":"uint16[]"}],
	 "name":"initializeCombiningMarks","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"salts","type":"uint256[]"}],
	 "name":"initializeCombiningMarksSalt","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"inputStr","type":"string"}],
	 "name":"stripDiacritics","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

var testContractAddress = common.HexToAddress("0x338F940F4231662Dd9a689DdC4691450de932Be5")

func newTestContract(t *testing.T, mockClient *internalmocks.EthClient) (*Contract, *Account) {
	t.Helper()
	gc, acc, cfg := newTestClient(t, mockClient)
	parsed, err := ParseABI(testABI)
	require.NoError(t, err)
	return NewContract(testContractAddress, parsed, gc, cfg), acc
}

// expectSigningInputs mocks the reads SignTransaction makes on an EIP-1559 chain
func expectSigningInputs(mockClient *internalmocks.EthClient, from common.Address, nonce uint64) {
	mockClient.On("PendingNonceAt", mock.Anything, from).Return(nonce, nil)
	mockClient.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(80000), nil)
	mockClient.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).Return(&types.Header{GasLimit: 30000000, BaseFee: big.NewInt(100)}, nil)
}

func TestParseABI_Invalid(t *testing.T) {
	_, err := ParseABI("{not json")
	assert.Error(t, err)
}

func TestContract_Invoke_UnknownFunction(t *testing.T) {
	mockClient := &internalmocks.EthClient{}
	contract, _ := newTestContract(t, mockClient)

	_, err := contract.Invoke("initializeCombiningMarksPepper", []*big.Int{big.NewInt(1)})
	assert.ErrorIs(t, err, ErrUnknownFunction)
	assert.False(t, contract.HasMethod("initializeCombiningMarksPepper"))
	// no RPC happened
	mockClient.AssertExpectations(t)
	assert.Empty(t, mockClient.Calls)
}

func TestContract_Invoke_ArgumentMismatch(t *testing.T) {
	mockClient := &internalmocks.EthClient{}
	contract, _ := newTestContract(t, mockClient)

	for name, tc := range map[string]struct {
		method string
		args   []interface{}
	}{
		"missing values":     {methodMarks, []interface{}{[]uint16{768}}},
		"extra argument":     {methodMarks, []interface{}{[]uint16{768}, []uint16{97}, []uint16{1}}},
		"uint256 for uint16": {methodMarks, []interface{}{[]*big.Int{big.NewInt(768)}, []uint16{97}}},
		"int for uint16":     {methodMarks, []interface{}{[]int{768}, []uint16{97}}},
		"scalar for array":   {methodMarks, []interface{}{uint16(768), []uint16{97}}},
		"uint16 for uint256": {methodSalt, []interface{}{[]uint16{1, 2}}},
		"uint64 for uint256": {methodSalt, []interface{}{[]uint64{1, 2}}},
		"nil salts":          {methodSalt, []interface{}{nil}},
		"no salts":           {methodSalt, nil},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := contract.Invoke(tc.method, tc.args...)
			assert.ErrorIs(t, err, ErrArgumentMismatch)
		})
	}
	assert.Empty(t, mockClient.Calls)
}

const (
	methodMarks = "initializeCombiningMarks"
	methodSalt  = "initializeCombiningMarksSalt"
)

func TestContract_InvokeSubmit_RoundTrip(t *testing.T) {
	mockClient := &internalmocks.EthClient{}
	contract, acc := newTestContract(t, mockClient)
	expectSigningInputs(mockClient, acc.Address, 3)

	var sent *types.Transaction
	mockClient.On("SendTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*types.Transaction) }).
		Return(nil).Once()

	keys := []uint16{768, 769, 770, 771}
	values := []uint16{97, 101, 105, 111}
	call, err := contract.Invoke(methodMarks, keys, values)
	require.NoError(t, err)
	assert.Equal(t, methodMarks, call.Method())
	assert.Empty(t, mockClient.Calls, "Invoke must not touch the network")

	submitted, err := call.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sent)

	assert.Equal(t, sent.Hash(), submitted.TxHash)
	assert.Equal(t, methodMarks, submitted.Method)
	assert.Equal(t, uint64(3), submitted.Nonce)
	assert.Equal(t, testContractAddress, *sent.To())
	assert.Equal(t, call.Data(), sent.Data())
	assert.Equal(t, contract.abi.Methods[methodMarks].ID, sent.Data()[:4])

	method, args, err := contract.DecodeCall(sent.Data())
	require.NoError(t, err)
	assert.Equal(t, methodMarks, method)
	assert.Equal(t, []interface{}{keys, values}, args)
	mockClient.AssertExpectations(t)
}

func TestContract_InvokeSubmit_Salts(t *testing.T) {
	mockClient := &internalmocks.EthClient{}
	contract, acc := newTestContract(t, mockClient)
	expectSigningInputs(mockClient, acc.Address, 4)

	var sent *types.Transaction
	mockClient.On("SendTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*types.Transaction) }).
		Return(nil).Once()

	salts := []*big.Int{big.NewInt(12345), big.NewInt(67890)}
	call, err := contract.Invoke(methodSalt, salts)
	require.NoError(t, err)
	_, err = call.Submit(context.Background())
	require.NoError(t, err)

	method, args, err := contract.DecodeCall(sent.Data())
	require.NoError(t, err)
	assert.Equal(t, methodSalt, method)
	require.Len(t, args, 1)
	decoded := args[0].([]*big.Int)
	require.Len(t, decoded, 2)
	assert.Equal(t, 0, decoded[0].Cmp(big.NewInt(12345)))
	assert.Equal(t, 0, decoded[1].Cmp(big.NewInt(67890)))
}

func TestPendingCall_SubmitOnce(t *testing.T) {
	mockClient := &internalmocks.EthClient{}
	contract, acc := newTestContract(t, mockClient)
	expectSigningInputs(mockClient, acc.Address, 1)
	mockClient.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).Once()

	call, err := contract.Invoke(methodSalt, []*big.Int{big.NewInt(1)})
	require.NoError(t, err)
	first, err := call.Submit(context.Background())
	require.NoError(t, err)
	second, err := call.Submit(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	mockClient.AssertExpectations(t)
}

func TestPendingCall_NonceRetry(t *testing.T) {
	mockClient := &internalmocks.EthClient{}
	contract, acc := newTestContract(t, mockClient)
	mockClient.On("PendingNonceAt", mock.Anything, acc.Address).Return(uint64(4), nil).Once()
	mockClient.On("PendingNonceAt", mock.Anything, acc.Address).Return(uint64(5), nil).Once()
	mockClient.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(80000), nil)
	mockClient.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).Return(&types.Header{GasLimit: 30000000, BaseFee: big.NewInt(100)}, nil)
	mockClient.On("SendTransaction", mock.Anything, mock.Anything).Return(errors.New("nonce too low: next nonce 5, tx nonce 4")).Once()
	mockClient.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).Once()

	call, err := contract.Invoke(methodSalt, []*big.Int{big.NewInt(1)})
	require.NoError(t, err)
	submitted, err := call.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), submitted.Nonce)
	mockClient.AssertExpectations(t)
}

func TestPendingCall_NonceRetriesExhausted(t *testing.T) {
	mockClient := &internalmocks.EthClient{}
	contract, acc := newTestContract(t, mockClient)
	contract.nonceRetries = 0
	expectSigningInputs(mockClient, acc.Address, 4)
	mockClient.On("SendTransaction", mock.Anything, mock.Anything).Return(errors.New("nonce too low")).Once()

	call, err := contract.Invoke(methodSalt, []*big.Int{big.NewInt(1)})
	require.NoError(t, err)
	_, err = call.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNonce)
	mockClient.AssertExpectations(t)
}

func TestPendingCall_SubmitErrors(t *testing.T) {
	mockClient := &internalmocks.EthClient{}
	contract, acc := newTestContract(t, mockClient)
	mockClient.On("PendingNonceAt", mock.Anything, acc.Address).Return(uint64(1), nil).Once()
	mockClient.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(0), errors.New("execution reverted")).Once()

	call, err := contract.Invoke(methodSalt, []*big.Int{big.NewInt(1)})
	require.NoError(t, err)
	_, err = call.Submit(context.Background())
	assert.ErrorIs(t, err, ErrRevert)

	expectSigningInputs(mockClient, acc.Address, 1)
	mockClient.On("SendTransaction", mock.Anything, mock.Anything).Return(errors.New("EOF")).Once()
	call, err = contract.Invoke(methodSalt, []*big.Int{big.NewInt(1)})
	require.NoError(t, err)
	_, err = call.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmission)
	mockClient.AssertExpectations(t)
}

func TestContract_Call(t *testing.T) {
	mockClient := &internalmocks.EthClient{}
	contract, acc := newTestContract(t, mockClient)
	out, err := contract.abi.Methods["stripDiacritics"].Outputs.Pack("There are some diacritics here!")
	require.NoError(t, err)

	mockClient.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return msg.To != nil && *msg.To == testContractAddress && msg.From == acc.Address
	}), (*big.Int)(nil)).Return(out, nil)

	results, err := contract.Call(context.Background(), "stripDiacritics", "Thérè äre sôme dîâcrítîcs here!")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"There are some diacritics here!"}, results)
	mockClient.AssertExpectations(t)
}

func TestContract_DecodeCall_Errors(t *testing.T) {
	contract, _ := newTestContract(t, &internalmocks.EthClient{})

	_, _, err := contract.DecodeCall([]byte{1, 2})
	assert.Error(t, err)

	_, _, err = contract.DecodeCall([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.ErrorIs(t, err, ErrUnknownFunction)
}
