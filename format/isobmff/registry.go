package isobmff

// registry maps every modelled box type to a constructor of an empty
// instance. Variant types are registered once per tag. The map is built at
// init and only read afterwards.
var registry = map[BoxType]func() Box{
	TypeFtyp: func() Box { return new(FileTypeBox) },
	TypeStyp: func() Box { return new(SegmentTypeBox) },
	TypeTtyp: func() Box { return new(TrackTypeBox) },
	TypeTyco: func() Box { return new(TypeCombinationBox) },
	TypeEtyp: func() Box { return new(ExtendedTypeBox) },
	TypeOtyp: func() Box { return new(OriginalFileTypeBox) },

	TypeMdat: func() Box { return new(MediaDataBox) },
	TypeFree: func() Box { return new(FreeSpaceBox) },
	TypeSkip: func() Box { return new(FreeSpaceBox) },
	TypePdin: func() Box { return new(ProgressiveDownloadInfoBox) },
	TypeImda: func() Box { return new(IdentifiedMediaDataBox) },

	TypeMeta: func() Box { return new(MetaBox) },
	TypeUdta: func() Box { return new(UserDataBox) },
	TypeCprt: func() Box { return new(CopyrightBox) },
	TypeKind: func() Box { return new(KindBox) },
	TypeXML:  func() Box { return new(XMLBox) },
	TypeBxml: func() Box { return new(BinaryXMLBox) },
	TypePitm: func() Box { return new(PrimaryItemBox) },
	TypeIdat: func() Box { return new(ItemDataBox) },

	TypeMoov: func() Box { return new(MovieBox) },
	TypeMvhd: func() Box { return new(MovieHeaderBox) },
	TypeTrak: func() Box { return new(TrackBox) },
	TypeTkhd: func() Box { return new(TrackHeaderBox) },
	TypeTref: func() Box { return new(TrackReferenceBox) },
	TypeTrgr: func() Box { return new(TrackGroupBox) },
	TypeEdts: func() Box { return new(EditBox) },
	TypeElst: func() Box { return new(EditListBox) },

	TypeMdia: func() Box { return new(MediaBox) },
	TypeMdhd: func() Box { return new(MediaHeaderBox) },
	TypeHdlr: func() Box { return new(HandlerBox) },
	TypeElng: func() Box { return new(ExtendedLanguageBox) },
	TypeMinf: func() Box { return new(MediaInformationBox) },
	TypeVmhd: func() Box { return new(VideoMediaHeaderBox) },
	TypeSmhd: func() Box { return new(SoundMediaHeaderBox) },
	TypeHmhd: func() Box { return new(HintMediaHeaderBox) },
	TypeSthd: func() Box { return new(SubtitleMediaHeaderBox) },
	TypeNmhd: func() Box { return new(NullMediaHeaderBox) },
	TypeDinf: func() Box { return new(DataInformationBox) },
	TypeDref: func() Box { return new(DataReferenceBox) },
	TypeURL:  func() Box { return new(DataEntryURLBox) },
	TypeURN:  func() Box { return new(DataEntryURNBox) },

	TypeStbl: func() Box { return new(SampleTableBox) },
	TypeStsd: func() Box { return new(SampleDescriptionBox) },
	TypeStts: func() Box { return new(TimeToSampleBox) },
	TypeCtts: func() Box { return new(CompositionOffsetBox) },
	TypeCslg: func() Box { return new(CompositionToDecodeBox) },
	TypeStsc: func() Box { return new(SampleToChunkBox) },
	TypeStsz: func() Box { return new(SampleSizeBox) },
	TypeStz2: func() Box { return new(CompactSampleSizeBox) },
	TypeStco: func() Box { return new(ChunkOffsetBox) },
	TypeCo64: func() Box { return new(ChunkLargeOffsetBox) },
	TypeStss: func() Box { return new(SyncSampleBox) },
	TypeStsh: func() Box { return new(ShadowSyncSampleBox) },
	TypePadb: func() Box { return new(PaddingBitsBox) },
	TypeStdp: func() Box { return new(DegradationPriorityBox) },
	TypeSdtp: func() Box { return new(SampleDependencyTypeBox) },
	TypeSbgp: func() Box { return new(SampleToGroupBox) },
	TypeSgpd: func() Box { return new(SampleGroupDescriptionBox) },
	TypeSubs: func() Box { return new(SubSampleInformationBox) },
	TypeSaiz: func() Box { return new(SampleAuxiliaryInformationSizesBox) },
	TypeSaio: func() Box { return new(SampleAuxiliaryInformationOffsetsBox) },

	TypeBtrt: func() Box { return new(BitRateBox) },
	TypePasp: func() Box { return new(PixelAspectRatioBox) },
	TypeClap: func() Box { return new(CleanApertureBox) },
	TypeColr: func() Box { return new(ColourInformationBox) },
	TypeClli: func() Box { return new(ContentLightLevelBox) },
	TypeMdcv: func() Box { return new(MasteringDisplayColourVolumeBox) },
	TypeSrat: func() Box { return new(SamplingRateBox) },

	TypeAvc1: func() Box { return new(AVCSampleEntry) },
	TypeAvc2: func() Box { return new(AVCSampleEntry) },
	TypeAvc3: func() Box { return new(AVCSampleEntry) },
	TypeAvc4: func() Box { return new(AVCSampleEntry) },
	TypeAvcp: func() Box { return new(AVCSampleEntry) },
	TypeAvcC: func() Box { return new(AVCConfigurationBox) },
	TypeHvc1: func() Box { return new(HEVCSampleEntry) },
	TypeHev1: func() Box { return new(HEVCSampleEntry) },
	TypeHvcC: func() Box { return new(HEVCConfigurationBox) },
	TypeAv01: func() Box { return new(AV1SampleEntry) },
	TypeAv1C: func() Box { return new(AV1CodecConfigurationBox) },
	TypeMp4a: func() Box { return new(MP4SampleEntry) },
	TypeMp4v: func() Box { return new(MP4SampleEntry) },
	TypeMp4s: func() Box { return new(MP4SampleEntry) },
	TypeEsds: func() Box { return new(ESDBox) },

	TypeMvex: func() Box { return new(MovieExtendsBox) },
	TypeMehd: func() Box { return new(MovieExtendsHeaderBox) },
	TypeTrex: func() Box { return new(TrackExtendsBox) },
	TypeLeva: func() Box { return new(LevelAssignmentBox) },
	TypeMoof: func() Box { return new(MovieFragmentBox) },
	TypeMfhd: func() Box { return new(MovieFragmentHeaderBox) },
	TypeTraf: func() Box { return new(TrackFragmentBox) },
	TypeTfhd: func() Box { return new(TrackFragmentHeaderBox) },
	TypeTfdt: func() Box { return new(TrackFragmentBaseMediaDecodeTimeBox) },
	TypeTrun: func() Box { return new(TrackRunBox) },
	TypeTrep: func() Box { return new(TrackExtensionPropertiesBox) },
	TypeMfra: func() Box { return new(MovieFragmentRandomAccessBox) },
	TypeTfra: func() Box { return new(TrackFragmentRandomAccessBox) },
	TypeMfro: func() Box { return new(MovieFragmentRandomAccessOffsetBox) },

	TypeSidx: func() Box { return new(SegmentIndexBox) },
	TypeSsix: func() Box { return new(SubsegmentIndexBox) },
	TypePrft: func() Box { return new(ProducerReferenceTimeBox) },

	TypeCmov: func() Box { return new(CompressedMovieBox) },
	TypeCmof: func() Box { return new(CompressedMovieFragmentBox) },
	TypeCsix: func() Box { return new(CompressedSegmentIndexBox) },
	TypeCssx: func() Box { return new(CompressedSubsegmentIndexBox) },
}

// New returns an empty box for t. Types without a schema come back as an
// *UnknownBox that keeps their payload verbatim.
func New(t BoxType) Box {
	if ctor, ok := registry[t]; ok {
		return ctor()
	}
	return new(UnknownBox)
}

// Registered reports whether t has a schema.
func Registered(t BoxType) bool {
	_, ok := registry[t]
	return ok
}
