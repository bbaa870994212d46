package handler

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/repository"
)

// ExtractorServiceName is the fully-qualified name of the ExtractorService.
const ExtractorServiceName = "extractor.v1.ExtractorService"

const (
	ExtractorServiceExtractProcedure         = "/" + ExtractorServiceName + "/Extract"
	ExtractorServiceExtractBatchProcedure    = "/" + ExtractorServiceName + "/ExtractBatch"
	ExtractorServiceAnalyzeProcedure         = "/" + ExtractorServiceName + "/Analyze"
	ExtractorServiceSummarizeProcedure       = "/" + ExtractorServiceName + "/Summarize"
	ExtractorServiceGetExtractionProcedure   = "/" + ExtractorServiceName + "/GetExtraction"
	ExtractorServiceListExtractionsProcedure = "/" + ExtractorServiceName + "/ListExtractions"
	ExtractorServiceExtractFileProcedure     = "/" + ExtractorServiceName + "/ExtractFile"
)

// ExtractorServiceHandler is the server side of the ExtractorService.
type ExtractorServiceHandler interface {
	Extract(context.Context, *connect.Request[ExtractRequest]) (*connect.Response[ExtractResponse], error)
	ExtractBatch(context.Context, *connect.Request[ExtractBatchRequest]) (*connect.Response[ExtractBatchResponse], error)
	Analyze(context.Context, *connect.Request[AnalyzeRequest]) (*connect.Response[AnalyzeResponse], error)
	Summarize(context.Context, *connect.Request[SummarizeRequest]) (*connect.Response[SummarizeResponse], error)
	GetExtraction(context.Context, *connect.Request[GetExtractionRequest]) (*connect.Response[repository.Extraction], error)
	ListExtractions(context.Context, *connect.Request[ListExtractionsRequest]) (*connect.Response[ListExtractionsResponse], error)
	ExtractFile(context.Context, *connect.Request[ExtractFileRequest]) (*connect.Response[ExtractFileResponse], error)
}

// NewExtractorServiceHandler builds an HTTP handler for svc, mounted under the returned path.
func NewExtractorServiceHandler(svc ExtractorServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec)}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ExtractorServiceExtractProcedure, connect.NewUnaryHandler(ExtractorServiceExtractProcedure, svc.Extract, opts...))
	mux.Handle(ExtractorServiceExtractBatchProcedure, connect.NewUnaryHandler(ExtractorServiceExtractBatchProcedure, svc.ExtractBatch, opts...))
	mux.Handle(ExtractorServiceAnalyzeProcedure, connect.NewUnaryHandler(ExtractorServiceAnalyzeProcedure, svc.Analyze, opts...))
	mux.Handle(ExtractorServiceSummarizeProcedure, connect.NewUnaryHandler(ExtractorServiceSummarizeProcedure, svc.Summarize, opts...))
	mux.Handle(ExtractorServiceGetExtractionProcedure, connect.NewUnaryHandler(ExtractorServiceGetExtractionProcedure, svc.GetExtraction, opts...))
	mux.Handle(ExtractorServiceListExtractionsProcedure, connect.NewUnaryHandler(ExtractorServiceListExtractionsProcedure, svc.ListExtractions, opts...))
	mux.Handle(ExtractorServiceExtractFileProcedure, connect.NewUnaryHandler(ExtractorServiceExtractFileProcedure, svc.ExtractFile, opts...))

	return "/" + ExtractorServiceName + "/", mux
}

// ExtractorServiceClient calls a remote ExtractorService.
type ExtractorServiceClient struct {
	extract         *connect.Client[ExtractRequest, ExtractResponse]
	extractBatch    *connect.Client[ExtractBatchRequest, ExtractBatchResponse]
	analyze         *connect.Client[AnalyzeRequest, AnalyzeResponse]
	summarize       *connect.Client[SummarizeRequest, SummarizeResponse]
	getExtraction   *connect.Client[GetExtractionRequest, repository.Extraction]
	listExtractions *connect.Client[ListExtractionsRequest, ListExtractionsResponse]
	extractFile     *connect.Client[ExtractFileRequest, ExtractFileResponse]
}

// NewExtractorServiceClient creates a client for the service at baseURL.
func NewExtractorServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExtractorServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(Codec)}, opts...)
	return &ExtractorServiceClient{
		extract:         connect.NewClient[ExtractRequest, ExtractResponse](httpClient, baseURL+ExtractorServiceExtractProcedure, opts...),
		extractBatch:    connect.NewClient[ExtractBatchRequest, ExtractBatchResponse](httpClient, baseURL+ExtractorServiceExtractBatchProcedure, opts...),
		analyze:         connect.NewClient[AnalyzeRequest, AnalyzeResponse](httpClient, baseURL+ExtractorServiceAnalyzeProcedure, opts...),
		summarize:       connect.NewClient[SummarizeRequest, SummarizeResponse](httpClient, baseURL+ExtractorServiceSummarizeProcedure, opts...),
		getExtraction:   connect.NewClient[GetExtractionRequest, repository.Extraction](httpClient, baseURL+ExtractorServiceGetExtractionProcedure, opts...),
		listExtractions: connect.NewClient[ListExtractionsRequest, ListExtractionsResponse](httpClient, baseURL+ExtractorServiceListExtractionsProcedure, opts...),
		extractFile:     connect.NewClient[ExtractFileRequest, ExtractFileResponse](httpClient, baseURL+ExtractorServiceExtractFileProcedure, opts...),
	}
}

func (c *ExtractorServiceClient) Extract(ctx context.Context, req *connect.Request[ExtractRequest]) (*connect.Response[ExtractResponse], error) {
	return c.extract.CallUnary(ctx, req)
}

func (c *ExtractorServiceClient) ExtractBatch(ctx context.Context, req *connect.Request[ExtractBatchRequest]) (*connect.Response[ExtractBatchResponse], error) {
	return c.extractBatch.CallUnary(ctx, req)
}

func (c *ExtractorServiceClient) Analyze(ctx context.Context, req *connect.Request[AnalyzeRequest]) (*connect.Response[AnalyzeResponse], error) {
	return c.analyze.CallUnary(ctx, req)
}

func (c *ExtractorServiceClient) Summarize(ctx context.Context, req *connect.Request[SummarizeRequest]) (*connect.Response[SummarizeResponse], error) {
	return c.summarize.CallUnary(ctx, req)
}

func (c *ExtractorServiceClient) GetExtraction(ctx context.Context, req *connect.Request[GetExtractionRequest]) (*connect.Response[repository.Extraction], error) {
	return c.getExtraction.CallUnary(ctx, req)
}

func (c *ExtractorServiceClient) ListExtractions(ctx context.Context, req *connect.Request[ListExtractionsRequest]) (*connect.Response[ListExtractionsResponse], error) {
	return c.listExtractions.CallUnary(ctx, req)
}

func (c *ExtractorServiceClient) ExtractFile(ctx context.Context, req *connect.Request[ExtractFileRequest]) (*connect.Response[ExtractFileResponse], error) {
	return c.extractFile.CallUnary(ctx, req)
}
