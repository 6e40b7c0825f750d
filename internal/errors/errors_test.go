package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidInput)
	suite.NotNil(err)
	suite.Equal(ErrInvalidInput, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	err = New(ErrNotFound, "手办不存在")
	suite.Equal("资源未找到", err.Message)
	suite.Equal("手办不存在", err.Details)

	err = New(ErrInvalidInput, "nfcUid格式错误", "字段: nfcUid")
	suite.Equal("nfcUid格式错误; 字段: nfcUid", err.Details)
}

func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidInput, "参数 %s 的值 %q 无效", "nfcUid", "a b")
	suite.Equal(`参数 nfcUid 的值 "a b" 无效`, err.Details)
}

// 测试错误包装不暴露底层错误文本
func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("UNIQUE constraint failed: figurines.nfc_uid")
	wrappedErr := Wrap(originalErr, ErrTransaction)
	suite.Equal(ErrTransaction, wrappedErr.Code)
	suite.Empty(wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
	suite.Contains(wrappedErr.Error(), "UNIQUE constraint failed")

	suite.Nil(Wrap(nil, ErrUnknown))

	// 包装已有的AppError，保留原始错误码
	appErr := New(ErrAlreadyBound)
	wrappedAppErr := Wrap(fmt.Errorf("绑定失败: %w", appErr), ErrInternal)
	suite.Equal(ErrAlreadyBound, wrappedAppErr.Code)
}

func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("连接超时")
	wrappedErr := Wrapf(originalErr, ErrDatabaseConnect, "数据库 %s 连接失败", "postgres")
	suite.Equal("数据库 postgres 连接失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断（支持错误链）
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrNotOwner)
	suite.True(Is(err, ErrNotOwner))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrNotOwner))
	suite.True(Is(fmt.Errorf("外层: %w", err), ErrNotOwner))
	suite.False(Is(errors.New("标准错误"), ErrUnknown))
}

func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrTokenExpired, GetCode(New(ErrTokenExpired)))
	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{Code: ErrNotFound, Message: "资源未找到"}
	suite.Equal("[1002] 资源未找到", err.Error())

	err.Details = "figurine: abc"
	suite.Equal("[1002] 资源未找到: figurine: abc", err.Error())
}

func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	suite.Equal(originalErr, Wrap(originalErr, ErrUnknown).Unwrap())
	suite.Nil(New(ErrUnknown).Unwrap())
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidInput, 400},
		{ErrNotFound, 404},
		{ErrNotOwner, 403},
		{ErrLockContention, 409},
		{ErrAlreadyBound, 409},
		{ErrAlreadyLinked, 409},
		{ErrNotLinked, 409},
		{ErrAuthentication, 401},
		{ErrTokenInvalid, 401},
		{ErrRateLimitExceeded, 429},
		{ErrLockUnavailable, 503},
		{ErrDatabaseConnect, 503},
		{ErrTransaction, 500},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

// 测试可重试判断
func (suite *ErrorsTestSuite) TestIsRetryable() {
	for _, code := range []ErrorCode{ErrTimeout, ErrLockContention, ErrLockUnavailable, ErrDatabaseConnect} {
		suite.True(IsRetryable(New(code)), "错误码 %d 应该是可重试的", code)
	}
	for _, code := range []ErrorCode{ErrInvalidInput, ErrAlreadyBound, ErrNotOwner} {
		suite.False(IsRetryable(New(code)), "错误码 %d 不应该是可重试的", code)
	}
	suite.False(IsRetryable(nil))
}

func (suite *ErrorsTestSuite) TestIsCritical() {
	suite.True(IsCritical(New(ErrDatabaseConnect)))
	suite.True(IsCritical(New(ErrTransaction)))
	suite.False(IsCritical(New(ErrAlreadyBound)))
	suite.False(IsCritical(nil))
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
}

func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrNotFound, "手办不存在")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

// 测试绑定相关错误都有固定消息
func (suite *ErrorsTestSuite) TestBindingErrors() {
	bindingErrors := map[ErrorCode]string{
		ErrLockContention: "该NFC标签正在被绑定，请稍后重试",
		ErrAlreadyBound:   "该NFC标签已被绑定",
		ErrNotOwner:       "无权操作该资源",
		ErrAlreadyLinked:  "手办或角色已存在关联",
		ErrNotLinked:      "手办未关联角色",
	}

	for code, expectedMsg := range bindingErrors {
		suite.Equal(expectedMsg, New(code).Message)
		suite.Equal(expectedMsg, Message(code))
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
